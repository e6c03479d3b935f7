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
	"os"
	"regexp"
	"strings"
)

// envVarPattern matches ${VAR} or ${VAR:default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// SubstituteEnvVars replaces ${VAR} or ${VAR:default} with environment
// variable values, falling back to the given default when VAR is unset.
func SubstituteEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		value := os.Getenv(parts[1])
		if value == "" && len(parts) > 2 {
			return parts[2]
		}
		return value
	})
}

// SubstituteEnvVarsInConfig recursively substitutes environment variables
// across every string field that may plausibly carry a reference.
func SubstituteEnvVarsInConfig(cfg *FileConfig) {
	if cfg == nil {
		return
	}
	cfg.Network.PrivateKeyHex = SubstituteEnvVars(cfg.Network.PrivateKeyHex)
	cfg.Network.Host = SubstituteEnvVars(cfg.Network.Host)
	for i := range cfg.Network.ICEServers {
		cfg.Network.ICEServers[i].Addr = SubstituteEnvVars(cfg.Network.ICEServers[i].Addr)
		cfg.Network.ICEServers[i].Username = SubstituteEnvVars(cfg.Network.ICEServers[i].Username)
		cfg.Network.ICEServers[i].Password = SubstituteEnvVars(cfg.Network.ICEServers[i].Password)
		cfg.Network.ICEServers[i].Realm = SubstituteEnvVars(cfg.Network.ICEServers[i].Realm)
	}
	if cfg.Logging != nil {
		cfg.Logging.Level = SubstituteEnvVars(cfg.Logging.Level)
		cfg.Logging.Output = SubstituteEnvVars(cfg.Logging.Output)
	}
	if cfg.Metrics != nil {
		cfg.Metrics.Addr = SubstituteEnvVars(cfg.Metrics.Addr)
		cfg.Metrics.Path = SubstituteEnvVars(cfg.Metrics.Path)
	}
	if cfg.Health != nil {
		cfg.Health.Addr = SubstituteEnvVars(cfg.Health.Addr)
	}
}

// GetEnvironment returns P2P_ENV, falling back to ENVIRONMENT, defaulting to
// "development".
func GetEnvironment() string {
	env := os.Getenv("P2P_ENV")
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	if env == "" {
		env = "development"
	}
	return strings.ToLower(env)
}

// IsProduction reports whether GetEnvironment is "production".
func IsProduction() bool {
	return GetEnvironment() == "production"
}
