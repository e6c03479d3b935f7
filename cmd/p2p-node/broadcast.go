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
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/p2ptransport/pkg/transport"
	"github.com/sage-x-project/p2ptransport/pkg/transport/peer"
)

var (
	broadcastConfigDir string
	broadcastEnv       string
	broadcastLogLevel  string
	broadcastPeers     string
	broadcastKind      string
)

var broadcastCmd = &cobra.Command{
	Use:   "broadcast",
	Short: "Fan a message out to a list of peers",
	RunE:  runBroadcast,
}

func init() {
	rootCmd.AddCommand(broadcastCmd)
	broadcastCmd.Flags().StringVar(&broadcastConfigDir, "config-dir", "config", "directory holding <env>.yaml/default.yaml")
	broadcastCmd.Flags().StringVar(&broadcastEnv, "env", "", "environment name (defaults to P2P_ENV or development)")
	broadcastCmd.Flags().StringVar(&broadcastLogLevel, "log-level", "warn", "debug, info, warn, or error")
	broadcastCmd.Flags().StringVar(&broadcastPeers, "peers", "", "comma-separated host:port@pubkeyhex list (required)")
	broadcastCmd.Flags().StringVar(&broadcastKind, "kind", "ping", "ping or chain-status")
	_ = broadcastCmd.MarkFlagRequired("peers")
}

func runBroadcast(cmd *cobra.Command, args []string) error {
	cfg, err := loadTransportConfig(broadcastConfigDir, broadcastEnv)
	if err != nil {
		return err
	}

	targets, err := parsePeerList(broadcastPeers)
	if err != nil {
		return err
	}
	msg, _, err := messageForKind(broadcastKind)
	if err != nil {
		return err
	}

	log := newLogger(broadcastLogLevel)
	tr := transport.New(cfg, log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := tr.Start(ctx); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}
	defer tr.Dispose()

	tr.Broadcast(targets, msg)
	// Broadcast enqueues work on the background pump; give it a moment to
	// drain before the process tears the transport down.
	time.Sleep(500 * time.Millisecond)
	fmt.Printf("broadcast %s to %d peers\n", msg.Kind, len(targets))
	return nil
}

func parsePeerList(s string) ([]peer.BoundPeer, error) {
	parts := strings.Split(s, ",")
	peers := make([]peer.BoundPeer, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		bp, err := parsePeerAddr(p)
		if err != nil {
			return nil, err
		}
		peers = append(peers, bp)
	}
	if len(peers) == 0 {
		return nil, fmt.Errorf("no peers parsed from %q", s)
	}
	return peers, nil
}
