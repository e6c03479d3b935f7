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

package socketcache

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
	"github.com/sage-x-project/p2ptransport/pkg/transport/peer"
	"github.com/sage-x-project/p2ptransport/pkg/transport/wire"
)

func listenTestPeer(t *testing.T) (peer.BoundPeer, *wire.Listener) {
	t.Helper()
	priv, err := identity.Generate()
	require.NoError(t, err)
	ln, err := wire.Listen("127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	bp := peer.NewBoundPeer(priv.Public(), "127.0.0.1", port)
	return bp, ln
}

func acceptLoop(ln *wire.Listener) {
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				for {
					if _, err := conn.ReadFrames(time.Time{}); err != nil {
						conn.Close()
						return
					}
				}
			}()
		}
	}()
}

func TestGetCachesAndReuses(t *testing.T) {
	bp, ln := listenTestPeer(t)
	defer ln.Close()
	acceptLoop(ln)

	log := logger.New(os.Stderr, logger.ErrorLevel)
	cache := New(time.Minute, time.Second, log)

	conn1, err := cache.Get(context.Background(), bp)
	require.NoError(t, err)
	conn2, err := cache.Get(context.Background(), bp)
	require.NoError(t, err)
	assert.Same(t, conn1, conn2)
}

func TestGetReplacesOnEndpointChange(t *testing.T) {
	bp, ln := listenTestPeer(t)
	defer ln.Close()
	acceptLoop(ln)

	priv := bp.PublicKey
	log := logger.New(os.Stderr, logger.ErrorLevel)
	cache := New(time.Minute, time.Second, log)

	conn1, err := cache.Get(context.Background(), bp)
	require.NoError(t, err)

	bp2, ln2 := listenTestPeer(t)
	defer ln2.Close()
	acceptLoop(ln2)
	bp2.PublicKey = priv // same identity, new endpoint

	conn2, err := cache.Get(context.Background(), bp2)
	require.NoError(t, err)
	assert.NotSame(t, conn1, conn2)
}

func TestEvictRemovesEntry(t *testing.T) {
	bp, ln := listenTestPeer(t)
	defer ln.Close()
	acceptLoop(ln)

	log := logger.New(os.Stderr, logger.ErrorLevel)
	cache := New(time.Minute, time.Second, log)

	_, err := cache.Get(context.Background(), bp)
	require.NoError(t, err)
	assert.True(t, cache.Contains(bp))

	cache.Evict(bp)
	assert.False(t, cache.Contains(bp))
}

func TestSweepEvictsIdleEntries(t *testing.T) {
	bp, ln := listenTestPeer(t)
	defer ln.Close()
	acceptLoop(ln)

	log := logger.New(os.Stderr, logger.ErrorLevel)
	cache := New(50*time.Millisecond, time.Second, log)

	_, err := cache.Get(context.Background(), bp)
	require.NoError(t, err)
	assert.True(t, cache.Contains(bp))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cache.Sweep(ctx, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		return !cache.Contains(bp)
	}, time.Second, 10*time.Millisecond)
}
