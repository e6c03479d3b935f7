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
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// LoaderOptions configures Load's search path and behavior.
type LoaderOptions struct {
	// ConfigDir is the directory containing config files (default "config").
	ConfigDir string
	// Environment overrides automatic environment detection.
	Environment string
	// SkipEnvSubstitution disables ${VAR} substitution.
	SkipEnvSubstitution bool
	// SkipValidation disables configuration validation.
	SkipValidation bool
}

// DefaultLoaderOptions returns the default search behavior.
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{ConfigDir: "config"}
}

// Load loads configuration with automatic environment detection: it tries
// <dir>/<env>.yaml, then <dir>/default.yaml, then <dir>/config.yaml, in that
// order, applying defaults, env-var substitution, explicit overrides, and
// validation (spec §6).
func Load(opts ...LoaderOptions) (*FileConfig, error) {
	options := DefaultLoaderOptions()
	if len(opts) > 0 {
		options = opts[0]
	}

	env := options.Environment
	if env == "" {
		env = GetEnvironment()
	}

	var cfg *FileConfig
	var err error
	for _, candidate := range []string{
		filepath.Join(options.ConfigDir, env+".yaml"),
		filepath.Join(options.ConfigDir, "default.yaml"),
		filepath.Join(options.ConfigDir, "config.yaml"),
	} {
		cfg, err = loadConfigFile(candidate)
		if err == nil {
			break
		}
	}
	if cfg == nil {
		cfg = &FileConfig{}
		setDefaults(cfg)
	}

	if cfg.Environment == "" {
		cfg.Environment = env
	}

	if !options.SkipEnvSubstitution {
		SubstituteEnvVarsInConfig(cfg)
	}
	applyEnvironmentOverrides(cfg)

	if !options.SkipValidation {
		if errs := Validate(cfg); len(errs) > 0 {
			for _, e := range errs {
				if e.Level == LevelError {
					return nil, fmt.Errorf("config: validation failed: %s: %s", e.Field, e.Message)
				}
			}
		}
	}

	return cfg, nil
}

func loadConfigFile(path string) (*FileConfig, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return LoadFromFile(path)
}

// applyEnvironmentOverrides applies the highest-priority, explicit env vars.
func applyEnvironmentOverrides(cfg *FileConfig) {
	if host := os.Getenv("P2P_HOST"); host != "" {
		cfg.Network.Host = host
	}
	if port := os.Getenv("P2P_LISTEN_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			cfg.Network.ListenPort = n
		}
	}
	if workers := os.Getenv("P2P_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil {
			cfg.Network.Workers = n
		}
	}
	if key := os.Getenv("P2P_PRIVATE_KEY"); key != "" {
		cfg.Network.PrivateKeyHex = key
	}
	if level := os.Getenv("P2P_LOG_LEVEL"); level != "" && cfg.Logging != nil {
		cfg.Logging.Level = level
	}
	if enabled := os.Getenv("P2P_METRICS_ENABLED"); enabled != "" && cfg.Metrics != nil {
		cfg.Metrics.Enabled = enabled == "true"
	}
}

// MustLoad loads configuration or panics on error.
func MustLoad(opts ...LoaderOptions) *FileConfig {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("config: failed to load: %v", err))
	}
	return cfg
}
