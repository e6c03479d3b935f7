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

package nat

import (
	"context"
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/p2ptransport/internal/logger"
)

func TestResolveUsesConfiguredHostFastPath(t *testing.T) {
	log := logger.New(os.Stderr, logger.ErrorLevel)
	res, sess, err := Resolve(context.Background(), "node.example.com", 4001, nil, log)
	require.NoError(t, err)
	assert.Nil(t, sess)
	require.NotNil(t, res.EndPoint)
	assert.Equal(t, "node.example.com", res.EndPoint.Host)
	assert.Equal(t, 4001, res.EndPoint.Port)
}

func TestResolveFailsWithNoHostAndNoServers(t *testing.T) {
	log := logger.New(os.Stderr, logger.ErrorLevel)
	_, _, err := Resolve(context.Background(), "", 4001, nil, log)
	require.Error(t, err)
	var noUsable *ErrNoUsableEndpoint
	assert.ErrorAs(t, err, &noUsable)
}

func TestDecideResolutionNotBehindNAT(t *testing.T) {
	reflexive := &net.UDPAddr{IP: net.ParseIP("203.0.113.9"), Port: 55000}
	local := &net.UDPAddr{IP: net.ParseIP("203.0.113.9"), Port: 55000}
	relay := &net.UDPAddr{IP: net.ParseIP("198.51.100.2"), Port: 3478}

	res := decideResolution(reflexive, local, relay, 4001)
	require.NotNil(t, res.EndPoint)
	assert.Equal(t, "203.0.113.9", res.EndPoint.Host)
	assert.Equal(t, 4001, res.EndPoint.Port)
	assert.True(t, res.PublicIP.Equal(net.ParseIP("203.0.113.9")))
}

func TestDecideResolutionBehindNATUsesRelay(t *testing.T) {
	reflexive := &net.UDPAddr{IP: net.ParseIP("203.0.113.9"), Port: 55000}
	local := &net.UDPAddr{IP: net.ParseIP("10.0.0.5"), Port: 55000}
	relay := &net.UDPAddr{IP: net.ParseIP("198.51.100.2"), Port: 3478}

	res := decideResolution(reflexive, local, relay, 4001)
	require.NotNil(t, res.EndPoint)
	assert.Equal(t, "198.51.100.2", res.EndPoint.Host)
	assert.Equal(t, 3478, res.EndPoint.Port)
}
