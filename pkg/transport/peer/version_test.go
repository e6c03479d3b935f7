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

func TestAppProtocolVersionSignVerify(t *testing.T) {
	signer, err := identity.Generate()
	require.NoError(t, err)

	v, err := Sign(1, []byte("extra"), signer)
	require.NoError(t, err)
	assert.NoError(t, v.Verify())
}

func TestAppProtocolVersionVerifyRejectsTamper(t *testing.T) {
	signer, err := identity.Generate()
	require.NoError(t, err)

	v, err := Sign(1, []byte("extra"), signer)
	require.NoError(t, err)

	v.Version = 2
	assert.Error(t, v.Verify())
}

func TestTrustedSignerSetNilTrustsAny(t *testing.T) {
	signer, err := identity.Generate()
	require.NoError(t, err)
	v, err := Sign(1, nil, signer)
	require.NoError(t, err)

	var set TrustedSignerSet
	assert.True(t, set.Trusts(v))
}

func TestTrustedSignerSetMembership(t *testing.T) {
	trusted, err := identity.Generate()
	require.NoError(t, err)
	untrusted, err := identity.Generate()
	require.NoError(t, err)

	set := NewTrustedSignerSet(trusted.Public())

	vTrusted, err := Sign(1, nil, trusted)
	require.NoError(t, err)
	vUntrusted, err := Sign(1, nil, untrusted)
	require.NoError(t, err)

	assert.True(t, set.Trusts(vTrusted))
	assert.False(t, set.Trusts(vUntrusted))
}

func TestAppProtocolVersionEqual(t *testing.T) {
	signer, err := identity.Generate()
	require.NoError(t, err)
	a, err := Sign(1, []byte("a"), signer)
	require.NoError(t, err)
	b, err := Sign(1, []byte("b"), signer)
	require.NoError(t, err)
	c, err := Sign(2, []byte("a"), signer)
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}
