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

package router

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/p2ptransport/internal/logger"
	"github.com/sage-x-project/p2ptransport/pkg/transport/identity"
	"github.com/sage-x-project/p2ptransport/pkg/transport/message"
	"github.com/sage-x-project/p2ptransport/pkg/transport/peer"
	"github.com/sage-x-project/p2ptransport/pkg/transport/wire"
)

type fakeReplier struct {
	mu    sync.Mutex
	calls [][]byte
}

func (f *fakeReplier) EnqueueReply(identity []byte, _ message.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, identity)
	return nil
}

func newTestRouter(t *testing.T, version peer.AppProtocolVersion, replier Replier) (*Router, *wire.Listener) {
	t.Helper()
	ln, err := wire.Listen("127.0.0.1:0")
	require.NoError(t, err)
	deps := Deps{
		Validator: message.LocalVersionValidator(version, nil, nil),
		Lifespan:  time.Minute,
		Log:       logger.New(os.Stderr, logger.ErrorLevel),
	}
	r := New(ln, replier, deps)
	return r, ln
}

func dialAndSend(t *testing.T, addr string, priv *identity.PrivateKey, version peer.AppProtocolVersion, msg message.Message) *wire.Conn {
	t.Helper()
	conn, err := wire.Dial(context.Background(), addr, time.Second)
	require.NoError(t, err)
	local := peer.Peer{PublicKey: priv.Public()}
	frames, err := message.Encode(msg, priv, local, time.Now(), version)
	require.NoError(t, err)
	require.NoError(t, conn.WriteFrames(frames, time.Now().Add(time.Second)))
	return conn
}

func TestRouterDispatchesDecodedMessage(t *testing.T) {
	version := peer.AppProtocolVersion{Version: 1}
	r, ln := newTestRouter(t, version, nil)
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Serve(ctx)

	received := make(chan message.Message, 1)
	r.Subscribe(func(_ context.Context, msg message.Message) { received <- msg })

	priv, err := identity.Generate()
	require.NoError(t, err)
	conn := dialAndSend(t, ln.Addr().String(), priv, version, message.NewPing())
	defer conn.Close()

	select {
	case msg := <-received:
		assert.Equal(t, message.KindPing, msg.Kind)
		assert.True(t, msg.Remote.PublicKey.Equal(priv.Public()))
		assert.NotEmpty(t, msg.Identity)
	case <-time.After(2 * time.Second):
		t.Fatal("handler was never invoked")
	}
	assert.WithinDuration(t, time.Now(), r.LastMessageTime(), 2*time.Second)
}

func TestRouterAutoRepliesOnVersionMismatch(t *testing.T) {
	local := peer.AppProtocolVersion{Version: 1}
	remote := peer.AppProtocolVersion{Version: 2}
	replier := &fakeReplier{}
	r, ln := newTestRouter(t, local, replier)
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Serve(ctx)

	handlerCalled := make(chan struct{}, 1)
	r.Subscribe(func(_ context.Context, _ message.Message) { handlerCalled <- struct{}{} })

	priv, err := identity.Generate()
	require.NoError(t, err)
	conn := dialAndSend(t, ln.Addr().String(), priv, remote, message.NewPing())
	defer conn.Close()

	require.Eventually(t, func() bool {
		replier.mu.Lock()
		defer replier.mu.Unlock()
		return len(replier.calls) == 1
	}, 2*time.Second, 10*time.Millisecond)

	select {
	case <-handlerCalled:
		t.Fatal("handler must not be invoked for a rejected version")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRouterHandoverRoutesToNewestConnection(t *testing.T) {
	version := peer.AppProtocolVersion{Version: 1}
	r, ln := newTestRouter(t, version, nil)
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Serve(ctx)

	identities := make(chan []byte, 2)
	r.Subscribe(func(_ context.Context, msg message.Message) { identities <- msg.Identity })

	priv, err := identity.Generate()
	require.NoError(t, err)

	connA := dialAndSend(t, ln.Addr().String(), priv, version, message.NewPing())
	firstIdentity := <-identities
	connA.Close()

	connB := dialAndSend(t, ln.Addr().String(), priv, version, message.NewPing())
	defer connB.Close()
	secondIdentity := <-identities

	assert.Equal(t, firstIdentity, secondIdentity)

	require.Eventually(t, func() bool {
		conn, ok := r.LookupConn(secondIdentity)
		return ok && conn != nil
	}, 2*time.Second, 10*time.Millisecond)
}
