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

// Package nat implements the C2 NAT Resolver: deriving the node's advertised
// public endpoint from either a configured host or a pool of ICE servers
// (TURN allocation plus STUN-derived reflexive address).
package nat

import (
	"context"
	"fmt"
	"net"

	"github.com/pion/turn/v3"

	"github.com/sage-x-project/p2ptransport/internal/logger"
	"github.com/sage-x-project/p2ptransport/internal/metrics"
	"github.com/sage-x-project/p2ptransport/pkg/transport/peer"
)

// Server describes one ICE server candidate from configuration.
type Server struct {
	Addr     string // TURN server "host:port"
	Username string
	Password string
	Realm    string
}

// Resolution is the outcome of a successful resolve: the endpoint other
// peers should dial, and the observed public IP (when learned via STUN).
type Resolution struct {
	EndPoint *peer.EndPoint
	PublicIP net.IP
}

// Session holds the live TURN allocation backing a Resolution obtained via an
// ICE server, so the caller can release it on shutdown. Sessions resolved
// from a configured host have a nil Session.
type Session struct {
	conn   net.PacketConn
	client *turn.Client
	relay  net.PacketConn
}

// Close releases the TURN allocation and underlying sockets.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	if s.relay != nil {
		_ = s.relay.Close()
	}
	if s.client != nil {
		s.client.Close()
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
	return nil
}

// ErrNoUsableEndpoint is returned when neither a host nor any ICE server
// could be resolved.
type ErrNoUsableEndpoint struct {
	Attempts []error
}

func (e *ErrNoUsableEndpoint) Error() string {
	return fmt.Sprintf("nat: no usable endpoint after %d attempt(s)", len(e.Attempts))
}

// Resolve implements spec §4.2: prefer the configured host; otherwise try
// each ICE server in order and use the first that succeeds.
func Resolve(ctx context.Context, host string, listenPort int, servers []Server, log logger.Logger) (Resolution, *Session, error) {
	if host != "" {
		log.Info("nat: using configured host", logger.String("host", host), logger.Int("port", listenPort))
		metrics.NATResolutions.WithLabelValues("configured_host").Inc()
		return Resolution{EndPoint: &peer.EndPoint{Host: host, Port: listenPort}}, nil, nil
	}

	var attempts []error
	for _, srv := range servers {
		res, sess, err := resolveViaServer(ctx, srv, listenPort, log)
		if err != nil {
			log.Warn("nat: ICE server failed", logger.String("server", srv.Addr), logger.Err(err))
			attempts = append(attempts, err)
			continue
		}
		return res, sess, nil
	}
	metrics.NATResolutions.WithLabelValues("failed").Inc()
	return Resolution{}, nil, &ErrNoUsableEndpoint{Attempts: attempts}
}

func resolveViaServer(ctx context.Context, srv Server, listenPort int, log logger.Logger) (Resolution, *Session, error) {
	conn, err := net.ListenPacket("udp4", "0.0.0.0:0")
	if err != nil {
		return Resolution{}, nil, fmt.Errorf("nat: listen udp: %w", err)
	}

	client, err := turn.NewClient(&turn.ClientConfig{
		STUNServerAddr: srv.Addr,
		TURNServerAddr: srv.Addr,
		Conn:           conn,
		Username:       srv.Username,
		Password:       srv.Password,
		Realm:          srv.Realm,
	})
	if err != nil {
		_ = conn.Close()
		return Resolution{}, nil, fmt.Errorf("nat: new turn client: %w", err)
	}
	if err := client.Listen(); err != nil {
		client.Close()
		_ = conn.Close()
		return Resolution{}, nil, fmt.Errorf("nat: turn listen: %w", err)
	}

	relay, err := client.Allocate()
	if err != nil {
		client.Close()
		_ = conn.Close()
		return Resolution{}, nil, fmt.Errorf("nat: turn allocate: %w", err)
	}

	mapped, err := client.SendBindingRequest()
	if err != nil {
		_ = relay.Close()
		client.Close()
		_ = conn.Close()
		return Resolution{}, nil, fmt.Errorf("nat: stun binding request: %w", err)
	}

	sess := &Session{conn: conn, client: client, relay: relay}
	res := decideResolution(mapped, conn.LocalAddr(), relay.LocalAddr(), listenPort)

	outcome := "turn_relay"
	if relayHost, relayPort := hostOf(relay.LocalAddr()); res.EndPoint != nil &&
		(res.EndPoint.Host != relayHost || res.EndPoint.Port != relayPort) {
		outcome = "turn_public"
	}
	metrics.NATResolutions.WithLabelValues(outcome).Inc()
	log.Info("nat: resolved via ICE server", logger.String("server", srv.Addr), logger.String("outcome", outcome))
	return res, sess, nil
}

// decideResolution is the pure decision spec §4.2 describes: if the STUN
// reflexive address equals the local socket address, the node is not behind
// NAT and the public address (host, listenPort) is advertised directly;
// otherwise the relay's allocated transport address is what remote peers
// must dial, and no directly-advertised endpoint is produced.
func decideResolution(reflexive, local, relay net.Addr, listenPort int) Resolution {
	reflexiveIP, _ := hostOf(reflexive)
	localIP, _ := hostOf(local)

	if reflexiveIP != "" && reflexiveIP == localIP {
		return Resolution{
			EndPoint: &peer.EndPoint{Host: reflexiveIP, Port: listenPort},
			PublicIP: net.ParseIP(reflexiveIP),
		}
	}

	relayHost, relayPort := hostOf(relay)
	var ep *peer.EndPoint
	if relayHost != "" {
		ep = &peer.EndPoint{Host: relayHost, Port: relayPort}
	}
	return Resolution{EndPoint: ep, PublicIP: net.ParseIP(reflexiveIP)}
}

func hostOf(addr net.Addr) (string, int) {
	if addr == nil {
		return "", 0
	}
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return "", 0
	}
	var p int
	_, _ = fmt.Sscanf(port, "%d", &p)
	return host, p
}
