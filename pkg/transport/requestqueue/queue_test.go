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
	"net"
	"os"
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

func echoServer(t *testing.T, priv *identity.PrivateKey, version peer.AppProtocolVersion, replyKind message.Kind, replies int) (peer.BoundPeer, func()) {
	t.Helper()
	ln, err := wire.Listen("127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if _, err := conn.ReadFrames(time.Now().Add(time.Second)); err != nil {
			return
		}
		for i := 0; i < replies; i++ {
			msg := message.New(replyKind)
			frames, err := message.Encode(msg, priv, peer.Peer{PublicKey: priv.Public()}, time.Now(), version)
			if err != nil {
				return
			}
			if err := conn.WriteFrames(frames, time.Now().Add(time.Second)); err != nil {
				return
			}
		}
		time.Sleep(2 * time.Second)
	}()

	target := peer.NewBoundPeer(priv.Public(), "127.0.0.1", port)
	return target, func() { ln.Close() }
}

func testDeps(t *testing.T) (Deps, *identity.PrivateKey) {
	t.Helper()
	priv, err := identity.Generate()
	require.NoError(t, err)
	version := peer.AppProtocolVersion{Version: 1}
	return Deps{
		PrivateKey: priv,
		LocalPeer:  func() peer.Peer { return peer.Peer{PublicKey: priv.Public()} },
		Version:    version,
		Validator:  message.LocalVersionValidator(version, nil, nil),
		Lifespan:   time.Minute,
		Log:        logger.New(os.Stderr, logger.ErrorLevel),
	}, priv
}

func TestSendWithReplyReceivesDecodedReply(t *testing.T) {
	deps, _ := testDeps(t)
	serverPriv, err := identity.Generate()
	require.NoError(t, err)
	target, closeFn := echoServer(t, serverPriv, deps.Version, message.KindPong, 1)
	defer closeFn()

	q := New()
	wg := RunWorkers(context.Background(), q, 2, deps)
	defer func() { q.Close(); wg.Wait() }()

	req := NewRequest(context.Background(), message.NewPing(), target, time.Second, 1, false)
	q.Enqueue(req)
	res := req.Await()
	require.NoError(t, res.Err)
	require.Len(t, res.Replies, 1)
	assert.Equal(t, message.KindPong, res.Replies[0].Kind)
}

func TestSendFireAndForgetCompletesImmediately(t *testing.T) {
	deps, _ := testDeps(t)
	serverPriv, err := identity.Generate()
	require.NoError(t, err)
	target, closeFn := echoServer(t, serverPriv, deps.Version, message.KindPong, 0)
	defer closeFn()

	q := New()
	wg := RunWorkers(context.Background(), q, 1, deps)
	defer func() { q.Close(); wg.Wait() }()

	req := NewRequest(context.Background(), message.NewPing(), target, time.Second, 0, false)
	q.Enqueue(req)
	res := req.Await()
	assert.NoError(t, res.Err)
	assert.Empty(t, res.Replies)
}

func TestSendWithRepliesPartialOnTimeout(t *testing.T) {
	deps, _ := testDeps(t)
	serverPriv, err := identity.Generate()
	require.NoError(t, err)
	target, closeFn := echoServer(t, serverPriv, deps.Version, message.KindChainStatus, 2)
	defer closeFn()

	q := New()
	wg := RunWorkers(context.Background(), q, 1, deps)
	defer func() { q.Close(); wg.Wait() }()

	req := NewRequest(context.Background(), message.NewGetChainStatus(), target, 300*time.Millisecond, 3, true)
	q.Enqueue(req)
	res := req.Await()
	require.NoError(t, res.Err)
	assert.Len(t, res.Replies, 2)
}

func TestSendWithRepliesTimeoutErrorWithoutReturnOnTimeout(t *testing.T) {
	deps, _ := testDeps(t)
	serverPriv, err := identity.Generate()
	require.NoError(t, err)
	target, closeFn := echoServer(t, serverPriv, deps.Version, message.KindChainStatus, 1)
	defer closeFn()

	q := New()
	wg := RunWorkers(context.Background(), q, 1, deps)
	defer func() { q.Close(); wg.Wait() }()

	req := NewRequest(context.Background(), message.NewGetChainStatus(), target, 300*time.Millisecond, 2, false)
	q.Enqueue(req)
	res := req.Await()
	require.Error(t, res.Err)
}

func TestQueueFIFOOrder(t *testing.T) {
	q := New()
	var order []string

	done := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			req, ok := q.dequeue()
			if !ok {
				return
			}
			order = append(order, req.ID)
		}
		close(done)
	}()

	r1 := NewRequest(context.Background(), message.NewPing(), peer.BoundPeer{}, time.Second, 0, false)
	r1.ID = "first"
	r2 := NewRequest(context.Background(), message.NewPing(), peer.BoundPeer{}, time.Second, 0, false)
	r2.ID = "second"
	r3 := NewRequest(context.Background(), message.NewPing(), peer.BoundPeer{}, time.Second, 0, false)
	r3.ID = "third"

	q.Enqueue(r1)
	q.Enqueue(r2)
	q.Enqueue(r3)
	<-done

	assert.Equal(t, []string{"first", "second", "third"}, order)
}
