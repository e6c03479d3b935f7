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

// Package broadcast implements the C7 Broadcast Pump: a queue of
// (peer-set, message) pairs fanned out in parallel via the outbound socket
// cache. Fire-and-forget; no completion is reported to the caller.
package broadcast

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/sage-x-project/p2ptransport/internal/logger"
	"github.com/sage-x-project/p2ptransport/internal/metrics"
	"github.com/sage-x-project/p2ptransport/pkg/transport/identity"
	"github.com/sage-x-project/p2ptransport/pkg/transport/message"
	"github.com/sage-x-project/p2ptransport/pkg/transport/peer"
	"github.com/sage-x-project/p2ptransport/pkg/transport/socketcache"
)

// sendTimeout bounds each per-peer send within a broadcast (spec §4.7).
const sendTimeout = 3 * time.Second

// Deps bundles the broadcast pump's codec-level dependencies.
type Deps struct {
	PrivateKey *identity.PrivateKey
	LocalPeer  func() peer.Peer
	Version    peer.AppProtocolVersion
	Log        logger.Logger
}

type pair struct {
	peers []peer.BoundPeer
	msg   message.Message
}

// Pump is the FIFO of (peer-set, message) pairs of spec §4.7.
type Pump struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  *list.List
	closed bool

	cache *socketcache.Cache
	deps  Deps
}

// New constructs a pump that fans out via cache.
func New(cache *socketcache.Cache, deps Deps) *Pump {
	p := &Pump{items: list.New(), cache: cache, deps: deps}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Broadcast enqueues (peers, msg); the pump drains it asynchronously.
func (p *Pump) Broadcast(peers []peer.BoundPeer, msg message.Message) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.items.PushBack(pair{peers: peers, msg: msg})
	metrics.BroadcastQueueDepth.Inc()
	p.cond.Signal()
	p.mu.Unlock()
}

func (p *Pump) dequeue() (pair, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.items.Len() == 0 && !p.closed {
		p.cond.Wait()
	}
	if p.items.Len() == 0 {
		return pair{}, false
	}
	front := p.items.Front()
	p.items.Remove(front)
	metrics.BroadcastQueueDepth.Dec()
	return front.Value.(pair), true
}

// Close stops the pump once its current backlog drains.
func (p *Pump) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.cond.Broadcast()
}

// Run drains the queue until Close is called and the backlog empties.
func (p *Pump) Run(ctx context.Context) {
	for {
		pr, ok := p.dequeue()
		if !ok {
			return
		}
		p.fanOut(ctx, pr)
	}
}

func (p *Pump) fanOut(ctx context.Context, pr pair) {
	frames, err := message.Encode(pr.msg, p.deps.PrivateKey, p.deps.LocalPeer(), time.Now(), p.deps.Version)
	if err != nil {
		p.deps.Log.Warn("broadcast: encode failed", logger.Err(err))
		return
	}

	var wg sync.WaitGroup
	wg.Add(len(pr.peers))
	for _, target := range pr.peers {
		target := target
		go func() {
			defer wg.Done()
			p.sendOne(ctx, target, pr.msg.Kind.String(), frames)
		}()
	}
	wg.Wait()
}

func (p *Pump) sendOne(ctx context.Context, target peer.BoundPeer, kind string, frames [][]byte) {
	conn, err := p.cache.Get(ctx, target)
	if err != nil {
		p.deps.Log.Debug("broadcast: dial failed", logger.String("peer", target.String()), logger.Err(err))
		metrics.MessagesDropped.WithLabelValues("broadcast_dial_failed").Inc()
		return
	}
	if err := conn.WriteFrames(frames, time.Now().Add(sendTimeout)); err != nil {
		p.deps.Log.Debug("broadcast: send failed, evicting socket", logger.String("peer", target.String()), logger.Err(err))
		p.cache.Evict(target)
		metrics.MessagesDropped.WithLabelValues("broadcast_send_failed").Inc()
		return
	}
	metrics.MessagesSent.WithLabelValues(kind).Inc()
}
