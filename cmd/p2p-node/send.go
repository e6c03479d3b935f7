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
	"github.com/sage-x-project/p2ptransport/pkg/transport/message"
)

var (
	sendConfigDir string
	sendEnv       string
	sendLogLevel  string
	sendPeerAddr  string
	sendKind      string
	sendTimeout   time.Duration
	sendWait      bool
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Dial one peer and send a single message, optionally awaiting a reply",
	RunE:  runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVar(&sendConfigDir, "config-dir", "config", "directory holding <env>.yaml/default.yaml")
	sendCmd.Flags().StringVar(&sendEnv, "env", "", "environment name (defaults to P2P_ENV or development)")
	sendCmd.Flags().StringVar(&sendLogLevel, "log-level", "warn", "debug, info, warn, or error")
	sendCmd.Flags().StringVar(&sendPeerAddr, "peer", "", "target peer as host:port@pubkeyhex (required)")
	sendCmd.Flags().StringVar(&sendKind, "kind", "ping", "ping or chain-status")
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 5*time.Second, "reply timeout")
	sendCmd.Flags().BoolVar(&sendWait, "wait", true, "wait for a reply before exiting")
	_ = sendCmd.MarkFlagRequired("peer")
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, err := loadTransportConfig(sendConfigDir, sendEnv)
	if err != nil {
		return err
	}
	target, err := parsePeerAddr(sendPeerAddr)
	if err != nil {
		return err
	}
	msg, wantsReply, err := messageForKind(sendKind)
	if err != nil {
		return err
	}

	log := newLogger(sendLogLevel)
	tr := transport.New(cfg, log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := tr.Start(ctx); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}
	defer tr.Dispose()

	if !sendWait || !wantsReply {
		if err := tr.Send(ctx, target, msg); err != nil {
			return fmt.Errorf("send: %w", err)
		}
		fmt.Printf("sent %s to %s\n", msg.Kind, target.String())
		return nil
	}

	reply, err := tr.SendWithReply(ctx, target, msg, sendTimeout)
	if err != nil {
		return fmt.Errorf("send with reply: %w", err)
	}
	fmt.Printf("received %s from %s\n", reply.Kind, reply.Remote.String())
	return nil
}

// messageForKind maps a CLI-friendly name to a request message and reports
// whether a caller should expect a reply to it.
func messageForKind(kind string) (message.Message, bool, error) {
	switch strings.ToLower(kind) {
	case "ping":
		return message.NewPing(), true, nil
	case "chain-status", "getchainstatus":
		return message.NewGetChainStatus(), true, nil
	default:
		return message.Message{}, false, fmt.Errorf("unknown message kind %q (want ping or chain-status)", kind)
	}
}
