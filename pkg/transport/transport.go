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

// Package transport is the public surface: the Lifecycle Controller (C8)
// wiring the codec, NAT resolver, socket cache, request queue, router,
// reply pump and broadcast pump into one node-to-node message transport.
package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sage-x-project/p2ptransport/internal/health"
	"github.com/sage-x-project/p2ptransport/internal/logger"
	"github.com/sage-x-project/p2ptransport/pkg/transport/broadcast"
	"github.com/sage-x-project/p2ptransport/pkg/transport/errs"
	"github.com/sage-x-project/p2ptransport/pkg/transport/identity"
	"github.com/sage-x-project/p2ptransport/pkg/transport/message"
	"github.com/sage-x-project/p2ptransport/pkg/transport/nat"
	"github.com/sage-x-project/p2ptransport/pkg/transport/peer"
	"github.com/sage-x-project/p2ptransport/pkg/transport/replypump"
	"github.com/sage-x-project/p2ptransport/pkg/transport/requestqueue"
	"github.com/sage-x-project/p2ptransport/pkg/transport/router"
	"github.com/sage-x-project/p2ptransport/pkg/transport/socketcache"
	"github.com/sage-x-project/p2ptransport/pkg/transport/wire"
)

// Handler is invoked once per decoded inbound message (spec §9's multicast
// async delegate, modeled as an ordered subscriber list).
type Handler = router.Handler

const (
	defaultSendTimeout  = 3 * time.Second
	defaultSweepPeriod  = 10 * time.Second
	defaultSocketLife   = 10 * time.Minute
	defaultDialTimeout  = 5 * time.Second
	defaultWorkerCount  = 4
)

// Config is the enumerated configuration of spec §6.
type Config struct {
	PrivateKey               *identity.PrivateKey
	AppProtocolVersion       peer.AppProtocolVersion
	TrustedVersionSigners    peer.TrustedSignerSet // nil = trust any
	Workers                  int
	Host                     string
	ListenPort               int // 0 = auto
	ICEServers               []nat.Server
	DifferentVersionCallback func(peer.AppProtocolVersion) bool
	MessageLifespan          time.Duration
	OutboundSocketLifetime   time.Duration // default 10 min
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = defaultWorkerCount
	}
	if c.OutboundSocketLifetime <= 0 {
		c.OutboundSocketLifetime = defaultSocketLife
	}
	return c
}

// Validate enforces the required invariants: host and ice_servers must not
// both be empty (spec §6), and a private key must be set.
func (c Config) Validate() error {
	if c.Host == "" && len(c.ICEServers) == 0 {
		return errs.NewTransportError("validate", fmt.Errorf("both host and ice_servers are empty"))
	}
	if c.PrivateKey == nil {
		return errs.NewTransportError("validate", fmt.Errorf("private key is required"))
	}
	return nil
}

// State is one of the six Lifecycle Controller states (spec §4.8).
type State int32

const (
	StateNew State = iota
	StateStarting
	StateRunning
	StateStopping
	StateStopped
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "New"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	case StateDisposed:
		return "Disposed"
	default:
		return "Unknown"
	}
}

// Transport is the public peer-to-peer message transport.
type Transport struct {
	cfg Config
	log logger.Logger

	stateMu sync.Mutex
	state   State

	runningMu sync.Mutex
	runningCh chan struct{}

	runtimeCtx    context.Context
	runtimeCancel context.CancelFunc

	ln         *wire.Listener
	session    *nat.Session
	advertised peer.Peer

	cache         *socketcache.Cache
	reqQueue      *requestqueue.Queue
	reqWorkersWG  *sync.WaitGroup
	rt            *router.Router
	replyPump     *replypump.Pump
	broadcastPump *broadcast.Pump
	health        *health.Checker

	bg *errgroup.Group
}

// New constructs a Transport in the New state. Call Start to bind and begin
// serving.
func New(cfg Config, log logger.Logger) *Transport {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Transport{
		cfg:       cfg.withDefaults(),
		log:       log,
		runningCh: make(chan struct{}),
	}
}

func (t *Transport) setState(s State) {
	t.stateMu.Lock()
	t.state = s
	t.stateMu.Unlock()
}

// State reports the current lifecycle state.
func (t *Transport) State() State {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	return t.state
}

// Start binds the listening socket, resolves the advertised endpoint,
// launches background tasks, and transitions to Running (spec §4.8).
func (t *Transport) Start(ctx context.Context) error {
	t.stateMu.Lock()
	switch t.state {
	case StateNew, StateStopped:
		t.state = StateStarting
	default:
		t.stateMu.Unlock()
		return errs.NewTransportError("start", fmt.Errorf("transport is %s", t.state))
	}
	t.stateMu.Unlock()

	if err := t.cfg.Validate(); err != nil {
		t.setState(StateNew)
		return err
	}

	ln, err := wire.Listen(net.JoinHostPort("0.0.0.0", strconv.Itoa(t.cfg.ListenPort)))
	if err != nil {
		t.setState(StateNew)
		return errs.NewTransportError("bind", err)
	}
	t.ln = ln
	actualPort := ln.Addr().(*net.TCPAddr).Port

	res, session, err := nat.Resolve(ctx, t.cfg.Host, actualPort, t.cfg.ICEServers, t.log)
	if err != nil {
		_ = ln.Close()
		t.setState(StateNew)
		return errs.NewTransportError("resolve nat", err)
	}
	t.session = session
	t.advertised = peer.Peer{
		PublicKey: t.cfg.PrivateKey.Public(),
		EndPoint:  res.EndPoint,
		PublicIP:  res.PublicIP,
	}

	t.runtimeCtx, t.runtimeCancel = context.WithCancel(context.Background())

	t.cache = socketcache.New(t.cfg.OutboundSocketLifetime, defaultDialTimeout, t.log)
	t.reqQueue = requestqueue.New()
	t.replyPump = replypump.New(nil, replypump.Deps{
		PrivateKey: t.cfg.PrivateKey,
		LocalPeer:  t.AsPeer,
		Version:    t.cfg.AppProtocolVersion,
		Log:        t.log,
	})

	validator := message.LocalVersionValidator(t.cfg.AppProtocolVersion, t.cfg.TrustedVersionSigners, t.cfg.DifferentVersionCallback)
	t.rt = router.New(ln, t.replyPump, router.Deps{
		Validator: validator,
		Lifespan:  t.cfg.MessageLifespan,
		Log:       t.log,
	})
	t.replyPump.SetConnLookup(t.rt)

	t.broadcastPump = broadcast.New(t.cache, broadcast.Deps{
		PrivateKey: t.cfg.PrivateKey,
		LocalPeer:  t.AsPeer,
		Version:    t.cfg.AppProtocolVersion,
		Log:        t.log,
	})

	t.reqWorkersWG = requestqueue.RunWorkers(t.runtimeCtx, t.reqQueue, t.cfg.Workers, requestqueue.Deps{
		PrivateKey: t.cfg.PrivateKey,
		LocalPeer:  t.AsPeer,
		Version:    t.cfg.AppProtocolVersion,
		Validator:  validator,
		Lifespan:   t.cfg.MessageLifespan,
		Log:        t.log,
	})

	t.health = health.New(5*time.Second, t.log)
	t.health.Register("listener", health.ListenerCheck(func() (string, error) {
		return ln.Addr().String(), nil
	}))
	t.health.Register("request_queue_depth", health.QueueDepthCheck(t.reqQueue.Len, 1024))

	t.bg = &errgroup.Group{}
	t.bg.Go(func() error { t.runSupervised("sweeper", func() { t.cache.Sweep(t.runtimeCtx, defaultSweepPeriod) }); return nil })
	t.bg.Go(func() error { t.runSupervised("router", func() { t.rt.Serve(t.runtimeCtx) }); return nil })
	t.bg.Go(func() error { t.runSupervised("reply-pump", func() { t.replyPump.Run(t.runtimeCtx) }); return nil })
	t.bg.Go(func() error { t.runSupervised("broadcast-pump", func() { t.broadcastPump.Run(t.runtimeCtx) }); return nil })

	t.setState(StateRunning)
	t.runningMu.Lock()
	close(t.runningCh)
	t.runningMu.Unlock()
	t.log.Info("transport: started", logger.String("advertised", t.advertised.String()), logger.Int("port", actualPort))
	return nil
}

// runSupervised recovers a panic in fn, logging it instead of crashing the
// process — background task crashes are isolated, not self-restarted
// (spec §4.8).
func (t *Transport) runSupervised(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("transport: background task panicked", logger.String("task", name), logger.Any("panic", r))
		}
	}()
	fn()
}

// WaitForRunning blocks until Running or ctx is cancelled.
func (t *Transport) WaitForRunning(ctx context.Context) error {
	select {
	case <-t.runningCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AsPeer returns the currently advertised identity.
func (t *Transport) AsPeer() peer.Peer { return t.advertised }

// LastMessageTimestamp reports when the most recent inbound message was
// successfully decoded.
func (t *Transport) LastMessageTimestamp() time.Time {
	if t.rt == nil {
		return time.Time{}
	}
	return t.rt.LastMessageTime()
}

// Health returns the liveness checker registered at Start, nil before then.
func (t *Transport) Health() *health.Checker { return t.health }

// OnMessage subscribes h to every decoded inbound message.
func (t *Transport) OnMessage(h Handler) {
	t.rt.Subscribe(h)
}

// Send is fire-and-forget with a 3 s wire timeout (spec §4.4).
func (t *Transport) Send(ctx context.Context, target peer.BoundPeer, msg message.Message) error {
	linked, cancel := t.linkCancel(ctx)
	defer cancel()
	req := requestqueue.NewRequest(linked, msg, target, defaultSendTimeout, 0, false)
	t.reqQueue.Enqueue(req)
	res := req.Await()
	return res.Err
}

// SendWithReply awaits exactly one decoded reply or an error.
func (t *Transport) SendWithReply(ctx context.Context, target peer.BoundPeer, msg message.Message, timeout time.Duration) (message.Message, error) {
	linked, cancel := t.linkCancel(ctx)
	defer cancel()
	req := requestqueue.NewRequest(linked, msg, target, timeout, 1, false)
	t.reqQueue.Enqueue(req)
	res := req.Await()
	if res.Err != nil {
		return message.Message{}, res.Err
	}
	if len(res.Replies) == 0 {
		return message.Message{}, &errs.TimeoutError{Op: "receive", Timeout: timeout}
	}
	return res.Replies[0], nil
}

// SendWithReplies awaits up to n decoded replies.
func (t *Transport) SendWithReplies(ctx context.Context, target peer.BoundPeer, msg message.Message, timeout time.Duration, n int, returnOnTimeout bool) ([]message.Message, error) {
	linked, cancel := t.linkCancel(ctx)
	defer cancel()
	req := requestqueue.NewRequest(linked, msg, target, timeout, n, returnOnTimeout)
	t.reqQueue.Enqueue(req)
	res := req.Await()
	return res.Replies, res.Err
}

// Broadcast fans msg out to peers, fire-and-forget.
func (t *Transport) Broadcast(peers []peer.BoundPeer, msg message.Message) {
	t.broadcastPump.Broadcast(peers, msg)
}

// Reply sends a reply whose routing identity was taken from the inbound
// message being answered (spec §4.6).
func (t *Transport) Reply(ctx context.Context, identity []byte, msg message.Message) error {
	linked, cancel := t.linkCancel(ctx)
	defer cancel()
	return t.replyPump.Reply(linked, identity, msg)
}

// linkCancel combines the caller's cancellation with the transport runtime
// cancellation (spec §5). The returned cancel must be called once the
// caller is done with the linked context (every public method above defers
// it right after Await()/Reply returns), or the watcher goroutine below
// leaks for the remaining lifetime of the transport.
func (t *Transport) linkCancel(ctx context.Context) (context.Context, context.CancelFunc) {
	linked, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-t.runtimeCtx.Done():
			cancel()
		case <-linked.Done():
		}
	}()
	return linked, cancel
}

// Stop drains for grace, then tears everything down (spec §4.8). Idempotent
// when not running.
func (t *Transport) Stop(ctx context.Context, grace time.Duration) error {
	t.stateMu.Lock()
	if t.state != StateRunning {
		t.stateMu.Unlock()
		return nil
	}
	t.state = StateStopping
	t.stateMu.Unlock()

	if grace > 0 {
		select {
		case <-time.After(grace):
		case <-ctx.Done():
		}
	}

	t.rt.CloseAll()
	t.reqQueue.Close()
	t.replyPump.Close()
	t.broadcastPump.Close()
	t.cache.CloseAll()
	_ = t.session.Close()
	t.runtimeCancel()

	t.reqWorkersWG.Wait()
	_ = t.bg.Wait()

	t.setState(StateStopped)
	t.log.Info("transport: stopped")
	return nil
}

// Dispose is idempotent final teardown.
func (t *Transport) Dispose() error {
	t.stateMu.Lock()
	if t.state == StateDisposed {
		t.stateMu.Unlock()
		return nil
	}
	wasRunning := t.state == StateRunning
	t.stateMu.Unlock()

	if wasRunning {
		_ = t.Stop(context.Background(), 0)
	}
	t.setState(StateDisposed)
	if t.runtimeCancel != nil {
		t.runtimeCancel()
	}
	return nil
}
