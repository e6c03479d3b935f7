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

package config

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/p2ptransport/pkg/transport/identity"
	"github.com/sage-x-project/p2ptransport/pkg/transport/peer"
)

func TestToTransportConfigDecodesKeyMaterial(t *testing.T) {
	priv, err := identity.Generate()
	require.NoError(t, err)

	cfg := &FileConfig{Network: NetworkConfig{
		PrivateKeyHex:      hex.EncodeToString(priv.Bytes()),
		AppProtocolVersion: 3,
		Host:               "127.0.0.1",
		ListenPort:         4001,
		Workers:            2,
	}}

	tc, err := cfg.ToTransportConfig()
	require.NoError(t, err)
	assert.Equal(t, 3, tc.AppProtocolVersion.Version)
	assert.Equal(t, "127.0.0.1", tc.Host)
	assert.Equal(t, 4001, tc.ListenPort)
	assert.Equal(t, 2, tc.Workers)
	assert.Equal(t, priv.Public().Hex(), tc.PrivateKey.Public().Hex())
}

func TestToTransportConfigRejectsInvalidHex(t *testing.T) {
	cfg := &FileConfig{Network: NetworkConfig{PrivateKeyHex: "not-hex", Host: "127.0.0.1"}}
	_, err := cfg.ToTransportConfig()
	assert.Error(t, err)
}

func TestToTransportConfigRejectsMissingHostAndIceServers(t *testing.T) {
	priv, err := identity.Generate()
	require.NoError(t, err)
	cfg := &FileConfig{Network: NetworkConfig{PrivateKeyHex: hex.EncodeToString(priv.Bytes())}}
	_, err = cfg.ToTransportConfig()
	assert.Error(t, err)
}

func TestToTransportConfigDecodesTrustedSigners(t *testing.T) {
	priv, err := identity.Generate()
	require.NoError(t, err)
	signer, err := identity.Generate()
	require.NoError(t, err)

	cfg := &FileConfig{Network: NetworkConfig{
		PrivateKeyHex:         hex.EncodeToString(priv.Bytes()),
		Host:                  "127.0.0.1",
		TrustedVersionSigners: []string{hex.EncodeToString(signer.Public().Bytes())},
	}}

	tc, err := cfg.ToTransportConfig()
	require.NoError(t, err)
	require.NotNil(t, tc.TrustedVersionSigners)

	signed, err := peer.Sign(2, nil, signer)
	require.NoError(t, err)
	assert.True(t, tc.TrustedVersionSigners.Trusts(signed))
}
