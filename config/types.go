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

// Package config loads and validates the transport's YAML configuration
// (spec §6): the private key material, peer-to-peer network parameters, and
// the ambient logging/metrics settings that sit alongside them.
package config

import "time"

// FileConfig is the root of the on-disk configuration file.
type FileConfig struct {
	Environment string         `yaml:"environment" json:"environment"`
	Network     NetworkConfig  `yaml:"network" json:"network"`
	Logging     *LoggingConfig `yaml:"logging" json:"logging"`
	Metrics     *MetricsConfig `yaml:"metrics" json:"metrics"`
	Health      *HealthConfig  `yaml:"health" json:"health"`
}

// NetworkConfig is the spec §6 Config enumeration, in its on-disk shape:
// hex-encoded key material and durations as YAML-parseable strings.
type NetworkConfig struct {
	PrivateKeyHex          string            `yaml:"private_key" json:"private_key"`
	AppProtocolVersion     int               `yaml:"app_protocol_version" json:"app_protocol_version"`
	TrustedVersionSigners  []string          `yaml:"trusted_version_signers" json:"trusted_version_signers"`
	Workers                int               `yaml:"workers" json:"workers"`
	Host                   string            `yaml:"host" json:"host"`
	ListenPort             int               `yaml:"listen_port" json:"listen_port"`
	ICEServers             []ICEServerConfig `yaml:"ice_servers" json:"ice_servers"`
	MessageLifespan        time.Duration     `yaml:"message_lifespan" json:"message_lifespan"`
	OutboundSocketLifetime time.Duration     `yaml:"outbound_socket_lifetime" json:"outbound_socket_lifetime"`
}

// ICEServerConfig is one STUN/TURN server entry of spec §4.2.
type ICEServerConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	Realm    string `yaml:"realm" json:"realm"`
}

// LoggingConfig holds the logging section of the file. It is loaded,
// defaulted and env-substituted, but p2p-node builds its logger from
// command-line flags and does not read it.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Output string `yaml:"output" json:"output"` // stdout, stderr, or a file path
}

// MetricsConfig controls the Prometheus HTTP exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
	Path    string `yaml:"path" json:"path"` // not read: the metrics server always serves /metrics
}

// HealthConfig controls the /healthz and /readyz HTTP endpoints.
type HealthConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
}
