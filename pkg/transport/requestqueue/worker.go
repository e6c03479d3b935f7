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

package requestqueue

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/sage-x-project/p2ptransport/internal/logger"
	"github.com/sage-x-project/p2ptransport/internal/metrics"
	"github.com/sage-x-project/p2ptransport/pkg/transport/errs"
	"github.com/sage-x-project/p2ptransport/pkg/transport/identity"
	"github.com/sage-x-project/p2ptransport/pkg/transport/message"
	"github.com/sage-x-project/p2ptransport/pkg/transport/peer"
	"github.com/sage-x-project/p2ptransport/pkg/transport/wire"
)

// Deps bundles what a worker needs to turn a Request into wire I/O, supplied
// by the transport's Lifecycle Controller at Start.
type Deps struct {
	PrivateKey *identity.PrivateKey
	LocalPeer  func() peer.Peer
	Version    peer.AppProtocolVersion
	Validator  message.VersionValidator
	Lifespan   time.Duration
	Log        logger.Logger
}

// RunWorkers launches n goroutines draining q until q is closed and empty,
// each processing one request at a time per spec §4.4's FIFO worker pool.
// Once ctx is cancelled, requests still dequeued are completed as cancelled
// without being sent.
func RunWorkers(ctx context.Context, q *Queue, n int, deps Deps) *sync.WaitGroup {
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			for {
				req, ok := q.dequeue()
				if !ok {
					return
				}
				select {
				case <-ctx.Done():
					req.complete(Result{Err: &errs.CancelledError{Cause: ctx.Err()}})
					continue
				default:
				}
				process(req, deps)
			}
		}()
	}
	return &wg
}

func process(req *Request, deps Deps) {
	metrics.RequestQueueDepth.Dec()

	conn, err := wire.Dial(req.ctx, req.Target.Address(), req.Timeout)
	if err != nil {
		req.complete(Result{Err: errs.NewTransportError("dial", err)})
		metrics.RequestsCompleted.WithLabelValues("error").Inc()
		return
	}
	defer conn.Close()

	frames, err := message.Encode(req.Message, deps.PrivateKey, deps.LocalPeer(), time.Now(), deps.Version)
	if err != nil {
		req.complete(Result{Err: errs.NewTransportError("encode", err)})
		metrics.RequestsCompleted.WithLabelValues("error").Inc()
		return
	}

	sendDeadline := time.Now().Add(req.Timeout)
	if err := conn.WriteFrames(frames, sendDeadline); err != nil {
		req.complete(Result{Err: classifySendErr(err, req.Timeout)})
		metrics.RequestsCompleted.WithLabelValues(outcomeFor(err)).Inc()
		return
	}
	metrics.MessagesSent.WithLabelValues(req.Message.Kind.String()).Inc()

	if req.ExpectedReplies == 0 {
		req.complete(Result{})
		metrics.RequestsCompleted.WithLabelValues("ok").Inc()
		return
	}

	replies := make([]message.Message, 0, req.ExpectedReplies)
	for i := 0; i < req.ExpectedReplies; i++ {
		deadline := time.Now().Add(req.Timeout)
		rawFrames, err := conn.ReadFrames(deadline)
		if err != nil {
			if isTimeout(err) {
				if req.ReturnOnTimeout {
					req.complete(Result{Replies: replies})
					metrics.RequestsCompleted.WithLabelValues("partial").Inc()
					return
				}
				req.complete(Result{Err: &errs.TimeoutError{Op: "receive", Timeout: req.Timeout}})
				metrics.RequestsCompleted.WithLabelValues("timeout").Inc()
				return
			}
			req.complete(Result{Err: errs.NewTransportError("receive", err)})
			metrics.RequestsCompleted.WithLabelValues("error").Inc()
			return
		}

		reply, err := message.Decode(rawFrames, false, deps.Validator, deps.Lifespan, time.Now())
		if err != nil {
			req.complete(Result{Err: err})
			metrics.RequestsCompleted.WithLabelValues("error").Inc()
			return
		}
		metrics.MessagesReceived.WithLabelValues(reply.Kind.String()).Inc()
		replies = append(replies, reply)
	}

	req.complete(Result{Replies: replies})
	metrics.RequestsCompleted.WithLabelValues("ok").Inc()
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func classifySendErr(err error, timeout time.Duration) error {
	if isTimeout(err) {
		return &errs.TimeoutError{Op: "send", Timeout: timeout}
	}
	return errs.NewTransportError("send", err)
}

func outcomeFor(err error) string {
	if isTimeout(err) {
		return "timeout"
	}
	return "error"
}
