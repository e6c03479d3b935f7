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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/p2ptransport/config"
	"github.com/sage-x-project/p2ptransport/internal/health"
	"github.com/sage-x-project/p2ptransport/internal/logger"
	"github.com/sage-x-project/p2ptransport/internal/metrics"
	"github.com/sage-x-project/p2ptransport/pkg/transport"
	"github.com/sage-x-project/p2ptransport/pkg/transport/message"
)

var (
	startConfigDir string
	startEnv       string
	startLogLevel  string
	startGrace     time.Duration
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Bind a node and serve the transport until interrupted",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
	startCmd.Flags().StringVar(&startConfigDir, "config-dir", "config", "directory holding <env>.yaml/default.yaml")
	startCmd.Flags().StringVar(&startEnv, "env", "", "environment name (defaults to P2P_ENV or development)")
	startCmd.Flags().StringVar(&startLogLevel, "log-level", "info", "debug, info, warn, or error")
	startCmd.Flags().DurationVar(&startGrace, "grace", 2*time.Second, "drain period before teardown on shutdown")
}

func runStart(cmd *cobra.Command, args []string) error {
	fc, err := config.Load(config.LoaderOptions{ConfigDir: startConfigDir, Environment: startEnv})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg, err := fc.ToTransportConfig()
	if err != nil {
		return fmt.Errorf("build transport config: %w", err)
	}

	log := newLogger(startLogLevel)

	if fc.Metrics != nil && fc.Metrics.Enabled {
		addr := fc.Metrics.Addr
		go func() {
			if err := metrics.StartServer(addr); err != nil {
				log.Error("metrics server exited", logger.Err(err))
			}
		}()
		log.Info("metrics server listening", logger.String("addr", addr))
	}

	tr := transport.New(cfg, log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := tr.Start(ctx); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}

	tr.OnMessage(func(ctx context.Context, msg message.Message) {
		log.Info("received message", logger.String("kind", msg.Kind.String()), logger.String("from", msg.Remote.String()))
		if msg.Kind == message.KindPing {
			if err := tr.Reply(ctx, msg.Identity, message.NewPong()); err != nil {
				log.Warn("failed to reply to ping", logger.Err(err))
			}
		}
	})
	fmt.Printf("p2p-node listening as %s\n", tr.AsPeer().String())

	var healthSrv *health.Server
	if fc.Health != nil && fc.Health.Enabled {
		healthSrv = health.NewServer(tr.Health(), log, fc.Health.Addr)
		if err := healthSrv.Start(); err != nil {
			return fmt.Errorf("start health server: %w", err)
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	fmt.Println("shutting down...")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), startGrace+5*time.Second)
	defer stopCancel()
	if healthSrv != nil {
		_ = healthSrv.Stop(stopCtx)
	}
	if err := tr.Stop(stopCtx, startGrace); err != nil {
		return fmt.Errorf("stop transport: %w", err)
	}
	return tr.Dispose()
}
