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
	"fmt"

	"github.com/sage-x-project/p2ptransport/pkg/transport"
	"github.com/sage-x-project/p2ptransport/pkg/transport/identity"
	"github.com/sage-x-project/p2ptransport/pkg/transport/nat"
	"github.com/sage-x-project/p2ptransport/pkg/transport/peer"
)

// ToTransportConfig decodes key material and builds the transport.Config
// this file describes.
func (cfg *FileConfig) ToTransportConfig() (transport.Config, error) {
	if errs := Validate(cfg); len(errs) > 0 {
		for _, e := range errs {
			if e.Level == LevelError {
				return transport.Config{}, fmt.Errorf("config: %s: %s", e.Field, e.Message)
			}
		}
	}

	keyBytes, err := hex.DecodeString(cfg.Network.PrivateKeyHex)
	if err != nil {
		return transport.Config{}, fmt.Errorf("config: private_key is not valid hex: %w", err)
	}
	priv, err := identity.FromBytes(keyBytes)
	if err != nil {
		return transport.Config{}, fmt.Errorf("config: invalid private key: %w", err)
	}

	var trusted peer.TrustedSignerSet
	if len(cfg.Network.TrustedVersionSigners) > 0 {
		keys := make([]*identity.PublicKey, 0, len(cfg.Network.TrustedVersionSigners))
		for _, signerHex := range cfg.Network.TrustedVersionSigners {
			b, err := hex.DecodeString(signerHex)
			if err != nil {
				return transport.Config{}, fmt.Errorf("config: trusted_version_signers entry is not valid hex: %w", err)
			}
			pub, err := identity.PublicKeyFromBytes(b)
			if err != nil {
				return transport.Config{}, fmt.Errorf("config: invalid trusted signer key: %w", err)
			}
			keys = append(keys, pub)
		}
		trusted = peer.NewTrustedSignerSet(keys...)
	}

	servers := make([]nat.Server, 0, len(cfg.Network.ICEServers))
	for _, s := range cfg.Network.ICEServers {
		servers = append(servers, nat.Server{
			Addr:     s.Addr,
			Username: s.Username,
			Password: s.Password,
			Realm:    s.Realm,
		})
	}

	return transport.Config{
		PrivateKey:             priv,
		AppProtocolVersion:     peer.AppProtocolVersion{Version: cfg.Network.AppProtocolVersion},
		TrustedVersionSigners:  trusted,
		Workers:                cfg.Network.Workers,
		Host:                   cfg.Network.Host,
		ListenPort:             cfg.Network.ListenPort,
		ICEServers:             servers,
		MessageLifespan:        cfg.Network.MessageLifespan,
		OutboundSocketLifetime: cfg.Network.OutboundSocketLifetime,
	}, nil
}
