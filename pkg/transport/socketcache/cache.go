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

// Package socketcache implements the C3 Outbound Socket Cache: a
// peer-address-keyed map of reusable outbound stream sockets with an idle
// sweeper, used only by broadcast/fan-out (never request/reply).
package socketcache

import (
	"context"
	"sync"
	"time"

	"github.com/sage-x-project/p2ptransport/internal/logger"
	"github.com/sage-x-project/p2ptransport/internal/metrics"
	"github.com/sage-x-project/p2ptransport/pkg/transport/peer"
	"github.com/sage-x-project/p2ptransport/pkg/transport/wire"
)

// entry pairs a live socket with its recorded endpoint and last-use time.
type entry struct {
	conn     *wire.Conn
	endpoint string
	lastUse  time.Time
}

// Cache is the single-lock peer-address -> socket map of spec §4.3.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	lifetime time.Duration
	dialTO   time.Duration
	log      logger.Logger
}

// New constructs a cache with the given idle lifetime and per-dial timeout.
func New(lifetime, dialTimeout time.Duration, log logger.Logger) *Cache {
	return &Cache{
		entries:  make(map[string]*entry),
		lifetime: lifetime,
		dialTO:   dialTimeout,
		log:      log,
	}
}

// Get returns a live socket for p, reusing a cached one when its recorded
// endpoint still matches and replacing it otherwise (spec §4.3).
func (c *Cache) Get(ctx context.Context, p peer.BoundPeer) (*wire.Conn, error) {
	addr := p.PublicKey.Hex()
	endpoint := p.Address()

	c.mu.Lock()
	existing, ok := c.entries[addr]
	if ok && existing.endpoint == endpoint {
		existing.lastUse = time.Now()
		conn := existing.conn
		c.mu.Unlock()
		return conn, nil
	}
	c.mu.Unlock()

	conn, err := wire.Dial(ctx, endpoint, c.dialTO)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if stale, ok := c.entries[addr]; ok {
		_ = stale.conn.Close()
		reason := "dead"
		if stale.endpoint != endpoint {
			reason = "endpoint_changed"
		}
		metrics.OutboundSocketsEvicted.WithLabelValues(reason).Inc()
	} else {
		metrics.OutboundSocketsActive.Inc()
	}
	c.entries[addr] = &entry{conn: conn, endpoint: endpoint, lastUse: time.Now()}
	return conn, nil
}

// Evict removes and closes the cached socket for p, used when a send fails.
func (c *Cache) Evict(p peer.BoundPeer) {
	addr := p.PublicKey.Hex()
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[addr]; ok {
		_ = e.conn.Close()
		delete(c.entries, addr)
		metrics.OutboundSocketsActive.Dec()
		metrics.OutboundSocketsEvicted.WithLabelValues("dead").Inc()
	}
}

// Contains reports whether addr currently has a live entry (test hook for
// the idle-eviction property).
func (c *Cache) Contains(p peer.BoundPeer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[p.PublicKey.Hex()]
	return ok
}

// Sweep runs every sweepPeriod until ctx is cancelled, disposing every entry
// older than the configured lifetime (spec §4.3).
func (c *Cache) Sweep(ctx context.Context, sweepPeriod time.Duration) {
	ticker := time.NewTicker(sweepPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweepOnce()
		}
	}
}

func (c *Cache) sweepOnce() {
	cutoff := time.Now().Add(-c.lifetime)
	c.mu.Lock()
	defer c.mu.Unlock()
	for addr, e := range c.entries {
		if e.lastUse.Before(cutoff) {
			_ = e.conn.Close()
			delete(c.entries, addr)
			metrics.OutboundSocketsActive.Dec()
			metrics.OutboundSocketsEvicted.WithLabelValues("idle").Inc()
			c.log.Debug("socketcache: evicted idle socket", logger.String("peer", addr))
		}
	}
}

// CloseAll disposes every cached socket, used on transport Stop.
func (c *Cache) CloseAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for addr, e := range c.entries {
		_ = e.conn.Close()
		delete(c.entries, addr)
		metrics.OutboundSocketsActive.Dec()
	}
}
