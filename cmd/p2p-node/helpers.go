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

package main

import (
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/sage-x-project/p2ptransport/config"
	"github.com/sage-x-project/p2ptransport/internal/logger"
	"github.com/sage-x-project/p2ptransport/pkg/transport"
	"github.com/sage-x-project/p2ptransport/pkg/transport/identity"
	"github.com/sage-x-project/p2ptransport/pkg/transport/peer"
)

// loadTransportConfig resolves configDir/env into a transport.Config.
func loadTransportConfig(configDir, env string) (transport.Config, error) {
	fc, err := config.Load(config.LoaderOptions{ConfigDir: configDir, Environment: env})
	if err != nil {
		return transport.Config{}, fmt.Errorf("load config: %w", err)
	}
	return fc.ToTransportConfig()
}

// newLogger builds the zap-backed logger at the requested level, writing to
// stderr so stdout stays free for command output.
func newLogger(level string) logger.Logger {
	lvl := logger.InfoLevel
	switch strings.ToLower(level) {
	case "debug":
		lvl = logger.DebugLevel
	case "warn":
		lvl = logger.WarnLevel
	case "error":
		lvl = logger.ErrorLevel
	}
	return logger.New(os.Stderr, lvl)
}

// parsePeerAddr parses "host:port@pubkeyhex" into a BoundPeer.
func parsePeerAddr(s string) (peer.BoundPeer, error) {
	parts := strings.SplitN(s, "@", 2)
	if len(parts) != 2 {
		return peer.BoundPeer{}, fmt.Errorf("peer address must be host:port@pubkeyhex, got %q", s)
	}
	host, portStr, err := net.SplitHostPort(parts[0])
	if err != nil {
		return peer.BoundPeer{}, fmt.Errorf("invalid host:port %q: %w", parts[0], err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return peer.BoundPeer{}, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	keyBytes, err := hex.DecodeString(parts[1])
	if err != nil {
		return peer.BoundPeer{}, fmt.Errorf("invalid public key hex: %w", err)
	}
	pub, err := identity.PublicKeyFromBytes(keyBytes)
	if err != nil {
		return peer.BoundPeer{}, fmt.Errorf("invalid public key: %w", err)
	}
	return peer.NewBoundPeer(pub, host, port), nil
}
