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

package replypump

import (
	"context"
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

type fakeConns struct {
	conn *wire.Conn
	id   []byte
}

func (f *fakeConns) LookupConn(identity []byte) (*wire.Conn, bool) {
	if f.conn == nil {
		return nil, false
	}
	if string(identity) != string(f.id) {
		return nil, false
	}
	return f.conn, true
}

func testPumpDeps(t *testing.T) Deps {
	t.Helper()
	priv, err := identity.Generate()
	require.NoError(t, err)
	return Deps{
		PrivateKey: priv,
		LocalPeer:  func() peer.Peer { return peer.Peer{PublicKey: priv.Public()} },
		Version:    peer.AppProtocolVersion{Version: 1},
		Log:        logger.New(os.Stderr, logger.ErrorLevel),
	}
}

func TestReplySendsOverLookedUpConn(t *testing.T) {
	ln, err := wire.Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	serverSide := make(chan *wire.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		require.NoError(t, err)
		serverSide <- conn
	}()

	clientSide, err := wire.Dial(context.Background(), ln.Addr().String(), time.Second)
	require.NoError(t, err)
	defer clientSide.Close()
	accepted := <-serverSide
	defer accepted.Close()

	id := []byte("identity-123")
	conns := &fakeConns{conn: accepted, id: id}
	pump := New(conns, testPumpDeps(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pump.Run(ctx)
	defer pump.Close()

	err = pump.Reply(context.Background(), id, message.NewPong())
	require.NoError(t, err)

	frames, err := clientSide.ReadFrames(time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(frames), 5)
}

func TestReplyResolvesEvenWhenPeerGone(t *testing.T) {
	conns := &fakeConns{}
	pump := New(conns, testPumpDeps(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pump.Run(ctx)
	defer pump.Close()

	err := pump.Reply(context.Background(), []byte("unknown-identity"), message.NewPong())
	assert.NoError(t, err)
}

func TestEnqueueReplyDoesNotBlockCaller(t *testing.T) {
	conns := &fakeConns{}
	pump := New(conns, testPumpDeps(t))

	done := make(chan struct{})
	go func() {
		err := pump.EnqueueReply([]byte("some-identity"), message.NewDifferentVersion())
		assert.NoError(t, err)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("EnqueueReply blocked unexpectedly")
	}
}
