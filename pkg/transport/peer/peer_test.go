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

package peer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/p2ptransport/pkg/transport/identity"
)

func testPublicKey(t *testing.T) *identity.PublicKey {
	t.Helper()
	priv, err := identity.Generate()
	require.NoError(t, err)
	return priv.Public()
}

func TestPeerBoundUnbound(t *testing.T) {
	pub := testPublicKey(t)

	unbound := Peer{PublicKey: pub}
	assert.False(t, unbound.Bound())
	_, err := unbound.ToBound()
	assert.Error(t, err)

	bound := Peer{PublicKey: pub, EndPoint: &EndPoint{Host: "1.2.3.4", Port: 9000}}
	assert.True(t, bound.Bound())
	bp, err := bound.ToBound()
	require.NoError(t, err)
	assert.Equal(t, "1.2.3.4:9000", bp.Address())
}

func TestPeerEqual(t *testing.T) {
	pub1 := testPublicKey(t)
	pub2 := testPublicKey(t)

	a := Peer{PublicKey: pub1, EndPoint: &EndPoint{Host: "h", Port: 1}}
	b := Peer{PublicKey: pub1, EndPoint: &EndPoint{Host: "h", Port: 1}}
	c := Peer{PublicKey: pub1, EndPoint: &EndPoint{Host: "h", Port: 2}}
	d := Peer{PublicKey: pub2, EndPoint: &EndPoint{Host: "h", Port: 1}}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(d))
}

func TestNewBoundPeer(t *testing.T) {
	pub := testPublicKey(t)
	bp := NewBoundPeer(pub, "example.com", 1234)
	assert.Equal(t, "example.com:1234", bp.Address())
	assert.True(t, bp.Bound())
}
