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

// Package replypump implements the C6 Reply Pump: outbound replies queued
// for the listening socket, paired with per-identity completion signals.
package replypump

import (
	"container/list"
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/sage-x-project/p2ptransport/internal/logger"
	"github.com/sage-x-project/p2ptransport/internal/metrics"
	"github.com/sage-x-project/p2ptransport/pkg/transport/identity"
	"github.com/sage-x-project/p2ptransport/pkg/transport/message"
	"github.com/sage-x-project/p2ptransport/pkg/transport/peer"
	"github.com/sage-x-project/p2ptransport/pkg/transport/wire"
)

// sendTimeout is the bounded send timeout for replies (spec §4.6).
const sendTimeout = time.Second

// ConnLookup resolves the live connection bound to a routing identity; the
// C5 Router satisfies this.
type ConnLookup interface {
	LookupConn(identity []byte) (*wire.Conn, bool)
}

// Deps bundles the reply pump's codec-level dependencies.
type Deps struct {
	PrivateKey *identity.PrivateKey
	LocalPeer  func() peer.Peer
	Version    peer.AppProtocolVersion
	Log        logger.Logger
}

type item struct {
	identity []byte
	msg      message.Message
}

// Pump is the queue of outbound replies of spec §4.6.
type Pump struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  *list.List
	closed bool

	pendingMu sync.Mutex
	pending   map[string]chan error

	conns ConnLookup
	deps  Deps
}

// New constructs a pump bound to conns for identity-to-connection lookups.
// conns may be nil and supplied later via SetConnLookup, since the router
// (the usual ConnLookup) itself depends on the pump as its Replier.
func New(conns ConnLookup, deps Deps) *Pump {
	p := &Pump{
		items:   list.New(),
		pending: make(map[string]chan error),
		conns:   conns,
		deps:    deps,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// SetConnLookup wires the connection lookup after construction, breaking the
// router/reply-pump construction cycle.
func (p *Pump) SetConnLookup(conns ConnLookup) {
	p.mu.Lock()
	p.conns = conns
	p.mu.Unlock()
}

// enqueue queues a reply and returns the completion channel that will
// receive exactly one value once the pump has attempted the send.
func (p *Pump) enqueue(identity []byte, msg message.Message) chan error {
	ch := make(chan error, 1)
	key := hex.EncodeToString(identity)

	p.pendingMu.Lock()
	p.pending[key] = ch
	p.pendingMu.Unlock()

	p.mu.Lock()
	p.items.PushBack(item{identity: identity, msg: msg})
	metrics.ReplyQueueDepth.Inc()
	p.cond.Signal()
	p.mu.Unlock()
	return ch
}

// EnqueueReply implements router.Replier: a fire-and-forget enqueue used for
// auto-generated DifferentVersion rejections, which nothing awaits.
func (p *Pump) EnqueueReply(identity []byte, msg message.Message) error {
	p.enqueue(identity, msg)
	return nil
}

// Reply enqueues msg addressed to identity and awaits the pump's completion
// signal or ctx cancellation — the public reply() operation of spec §6.
func (p *Pump) Reply(ctx context.Context, identity []byte, msg message.Message) error {
	ch := p.enqueue(identity, msg)
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pump) dequeue() (item, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.items.Len() == 0 && !p.closed {
		p.cond.Wait()
	}
	if p.items.Len() == 0 {
		return item{}, false
	}
	front := p.items.Front()
	p.items.Remove(front)
	metrics.ReplyQueueDepth.Dec()
	return front.Value.(item), true
}

// Close stops the pump; pending Run loops exit once the queue drains.
func (p *Pump) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.cond.Broadcast()
}

// Run drains the queue until Close is called and the backlog empties.
func (p *Pump) Run(ctx context.Context) {
	for {
		it, ok := p.dequeue()
		if !ok {
			return
		}
		p.send(it)
	}
}

func (p *Pump) send(it item) {
	key := hex.EncodeToString(it.identity)
	defer func() {
		p.pendingMu.Lock()
		ch, ok := p.pending[key]
		delete(p.pending, key)
		p.pendingMu.Unlock()
		if ok {
			// Resolved unconditionally: the caller only needs to know the
			// pump attempted delivery (spec §4.6's "resolves the handle
			// anyway" on send failure).
			ch <- nil
		}
	}()

	conn, ok := p.conns.LookupConn(it.identity)
	if !ok {
		p.deps.Log.Debug("replypump: no connection for identity, dropping reply", logger.String("identity", key))
		metrics.MessagesDropped.WithLabelValues("reply_peer_gone").Inc()
		return
	}

	frames, err := message.Encode(it.msg, p.deps.PrivateKey, p.deps.LocalPeer(), time.Now(), p.deps.Version)
	if err != nil {
		p.deps.Log.Warn("replypump: encode failed", logger.Err(err))
		metrics.MessagesDropped.WithLabelValues("reply_encode_failed").Inc()
		return
	}

	if err := conn.WriteFrames(frames, time.Now().Add(sendTimeout)); err != nil {
		p.deps.Log.Warn("replypump: send failed", logger.String("identity", key), logger.Err(err))
		metrics.MessagesDropped.WithLabelValues("reply_send_failed").Inc()
		return
	}
	metrics.MessagesSent.WithLabelValues(it.msg.Kind.String()).Inc()
}
