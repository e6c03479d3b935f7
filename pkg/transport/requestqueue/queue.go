// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package requestqueue implements the C4 Request Queue & Workers: an
// unbounded FIFO of outbound request descriptors drained by N workers, each
// opening a dedicated ephemeral socket per request.
package requestqueue

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sage-x-project/p2ptransport/internal/metrics"
	"github.com/sage-x-project/p2ptransport/pkg/transport/message"
	"github.com/sage-x-project/p2ptransport/pkg/transport/peer"
)

// Result is what a Request's completion handle resolves to.
type Result struct {
	Replies []message.Message
	Err     error
}

// Request is the MessageRequest descriptor of spec §3.
type Request struct {
	ID              string
	Message         message.Message
	Target          peer.BoundPeer
	EnqueuedAt      time.Time
	Timeout         time.Duration
	ExpectedReplies int
	ReturnOnTimeout bool

	ctx  context.Context
	done chan Result
}

// NewRequest builds a request ready for Queue.Enqueue. ctx should already
// combine the caller's cancellation with the transport runtime cancellation.
func NewRequest(ctx context.Context, msg message.Message, target peer.BoundPeer, timeout time.Duration, expectedReplies int, returnOnTimeout bool) *Request {
	return &Request{
		ID:              uuid.NewString(),
		Message:         msg,
		Target:          target,
		EnqueuedAt:      time.Now(),
		Timeout:         timeout,
		ExpectedReplies: expectedReplies,
		ReturnOnTimeout: returnOnTimeout,
		ctx:             ctx,
		done:            make(chan Result, 1),
	}
}

// Await blocks for the request's single-shot completion.
func (r *Request) Await() Result {
	select {
	case res := <-r.done:
		return res
	case <-r.ctx.Done():
		return Result{Err: r.ctx.Err()}
	}
}

// complete resolves the handle exactly once; later calls are no-ops since
// done is buffered size 1 and only ever written once by the owning worker.
func (r *Request) complete(res Result) {
	select {
	case r.done <- res:
	default:
	}
}

// Queue is the unbounded FIFO of spec §4.4: a doubly-linked list guarded by
// a mutex, with workers parked on a condition variable between items.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  *list.List
	closed bool
}

// New constructs an empty queue.
func New() *Queue {
	q := &Queue{items: list.New()}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends req to the tail of the FIFO and wakes one waiting worker.
func (q *Queue) Enqueue(req *Request) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		req.complete(Result{Err: context.Canceled})
		return
	}
	q.items.PushBack(req)
	metrics.RequestQueueDepth.Inc()
	q.cond.Signal()
}

// dequeue blocks until an item is available or the queue is closed, in which
// case it returns (nil, false).
func (q *Queue) dequeue() (*Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.items.Len() == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.items.Len() == 0 {
		return nil, false
	}
	front := q.items.Front()
	q.items.Remove(front)
	return front.Value.(*Request), true
}

// Len reports the current backlog size, for health/metrics reporting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Close stops the queue: pending Dequeue calls return false and any
// subsequent Enqueue resolves its request as cancelled immediately.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
