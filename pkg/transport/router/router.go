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

// Package router implements the C5 Inbound Router: the single listening
// socket that decodes multi-frame messages, dispatches them to application
// handlers, and auto-replies DifferentVersion on protocol mismatch.
package router

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/sage-x-project/p2ptransport/internal/logger"
	"github.com/sage-x-project/p2ptransport/internal/metrics"
	"github.com/sage-x-project/p2ptransport/pkg/transport/errs"
	"github.com/sage-x-project/p2ptransport/pkg/transport/message"
	"github.com/sage-x-project/p2ptransport/pkg/transport/wire"
)

// Handler is one subscriber invoked per decoded inbound message. It runs in
// its own goroutine so a slow handler cannot stall the router (spec §4.5.4).
type Handler func(ctx context.Context, msg message.Message)

// Replier is satisfied by the C6 Reply Pump; the router uses it only to
// auto-enqueue DifferentVersion rejections.
type Replier interface {
	EnqueueReply(identity []byte, msg message.Message) error
}

// Deps bundles the router's codec-level dependencies.
type Deps struct {
	Validator message.VersionValidator
	Lifespan  time.Duration
	Log       logger.Logger
}

// Router owns the listening socket exclusively; every other component talks
// to it only via the reply queue, per spec §5's resource-ownership rule.
type Router struct {
	ln       *wire.Listener
	registry *wire.IdentityRegistry
	replier  Replier
	deps     Deps

	handlersMu sync.RWMutex
	handlers   []Handler

	lastMu   sync.RWMutex
	lastTime time.Time

	connsMu sync.Mutex
	conns   map[*wire.Conn]struct{}
}

// New wraps an already-bound listener.
func New(ln *wire.Listener, replier Replier, deps Deps) *Router {
	return &Router{
		ln:       ln,
		registry: wire.NewIdentityRegistry(),
		replier:  replier,
		deps:     deps,
		conns:    make(map[*wire.Conn]struct{}),
	}
}

// Subscribe registers a handler; handlers fire in registration order but
// concurrently with one another (spec §9's "ordered list of async
// callbacks invoked concurrently").
func (r *Router) Subscribe(h Handler) {
	r.handlersMu.Lock()
	defer r.handlersMu.Unlock()
	r.handlers = append(r.handlers, h)
}

// LastMessageTime reports when the most recent inbound message was
// successfully decoded, zero if none yet.
func (r *Router) LastMessageTime() time.Time {
	r.lastMu.RLock()
	defer r.lastMu.RUnlock()
	return r.lastTime
}

// LookupConn returns the connection currently bound to identity, used by the
// reply pump to route a reply to the right peer (spec §4.6).
func (r *Router) LookupConn(identity []byte) (*wire.Conn, bool) {
	return r.registry.Lookup(identity)
}

// Serve accepts connections until ctx is cancelled or the listener closes.
func (r *Router) Serve(ctx context.Context) {
	for {
		conn, err := r.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.deps.Log.Warn("router: accept failed", logger.Err(err))
			return
		}
		r.trackConn(conn)
		go r.handleConn(ctx, conn)
	}
}

func (r *Router) trackConn(conn *wire.Conn) {
	r.connsMu.Lock()
	r.conns[conn] = struct{}{}
	r.connsMu.Unlock()
}

func (r *Router) untrackConn(conn *wire.Conn) {
	r.connsMu.Lock()
	delete(r.conns, conn)
	r.connsMu.Unlock()
}

// CloseAll closes the listener and every tracked connection, used on Stop.
func (r *Router) CloseAll() {
	_ = r.ln.Close()
	r.connsMu.Lock()
	defer r.connsMu.Unlock()
	for conn := range r.conns {
		_ = conn.Close()
		delete(r.conns, conn)
	}
}

func (r *Router) handleConn(ctx context.Context, conn *wire.Conn) {
	defer r.untrackConn(conn)
	defer conn.Close()
	for {
		if ctx.Err() != nil {
			return
		}
		// A bounded deadline lets the loop observe ctx cancellation between
		// reads without a dedicated unblocking mechanism per connection.
		frames, err := conn.ReadFrames(time.Now().Add(time.Second))
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return
		}
		r.dispatch(ctx, conn, frames)
	}
}

func (r *Router) dispatch(ctx context.Context, conn *wire.Conn, frames [][]byte) {
	if ctx.Err() != nil {
		return
	}
	if len(frames) < 3 {
		r.deps.Log.Debug("router: dropping malformed frame group", logger.Int("frames", len(frames)))
		metrics.MessagesDropped.WithLabelValues("malformed").Inc()
		return
	}

	// Frames carry no identity of their own on this wire (the router mints
	// one locally); decode raw, unassigned frames first so the registry is
	// only ever mutated for a sender whose message signature already
	// verified. Assigning identity from an unverified peer frame would let
	// an attacker who merely claims a victim's public key hijack
	// IdentityRegistry.byIdentity for that identity before the forged
	// message is rejected.
	decoded, err := message.Decode(frames, false, r.deps.Validator, r.deps.Lifespan, time.Now())
	if err != nil {
		r.handleDecodeError(conn, err)
		return
	}

	identity := r.registry.Assign(decoded.Remote.PublicKey.Hex(), conn)
	decoded.Identity = identity

	metrics.MessagesReceived.WithLabelValues(decoded.Kind.String()).Inc()
	r.lastMu.Lock()
	r.lastTime = time.Now()
	r.lastMu.Unlock()

	r.handlersMu.RLock()
	handlers := make([]Handler, len(r.handlers))
	copy(handlers, r.handlers)
	r.handlersMu.RUnlock()

	for _, h := range handlers {
		go h(ctx, decoded)
	}
}

func (r *Router) handleDecodeError(conn *wire.Conn, err error) {
	var versionErr *errs.DifferentAppProtocolVersionError
	if errors.As(err, &versionErr) {
		r.deps.Log.Info("router: version mismatch, replying DifferentVersion", logger.Err(err))
		metrics.MessagesDropped.WithLabelValues("different_version").Inc()
		// Sender was decoded and signature-verified before the version
		// check ran (see message.Decode), so it is safe to assign an
		// identity for it here despite the overall rejection.
		if r.replier != nil && versionErr.Sender.PublicKey != nil {
			identity := r.registry.Assign(versionErr.Sender.PublicKey.Hex(), conn)
			if sendErr := r.replier.EnqueueReply(identity, message.NewDifferentVersion()); sendErr != nil {
				r.deps.Log.Warn("router: failed to enqueue DifferentVersion reply", logger.Err(sendErr))
			}
		}
		return
	}

	var timestampErr *errs.InvalidTimestampError
	if errors.As(err, &timestampErr) {
		r.deps.Log.Debug("router: dropping message with invalid timestamp", logger.Err(err))
		metrics.MessagesDropped.WithLabelValues("invalid_timestamp").Inc()
		return
	}

	r.deps.Log.Debug("router: dropping invalid message", logger.Err(err))
	metrics.MessagesDropped.WithLabelValues("invalid_message").Inc()
}
