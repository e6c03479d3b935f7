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

// Package peer defines the node identity and remote-endpoint data model:
// Peer, BoundPeer, and the signed AppProtocolVersion compatibility token.
package peer

import (
	"fmt"
	"net"
	"strconv"

	"github.com/sage-x-project/p2ptransport/pkg/transport/identity"
)

// EndPoint is a DNS-resolvable host/port pair, as advertised by NAT resolution.
type EndPoint struct {
	Host string
	Port int
}

// String renders "host:port".
func (e EndPoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Peer identifies a remote participant by public key, with an optional bound
// endpoint and an optional observed public IP. A Peer with no EndPoint is
// unaddressable; see BoundPeer.
type Peer struct {
	PublicKey *identity.PublicKey
	EndPoint  *EndPoint
	PublicIP  net.IP
}

// Bound reports whether this peer carries a usable endpoint.
func (p Peer) Bound() bool {
	return p.EndPoint != nil
}

// ToBound asserts this peer is addressable, returning a BoundPeer.
func (p Peer) ToBound() (BoundPeer, error) {
	if !p.Bound() {
		return BoundPeer{}, fmt.Errorf("peer %s has no bound endpoint", p.String())
	}
	return BoundPeer{Peer: p}, nil
}

// String renders a short, loggable identifier for the peer.
func (p Peer) String() string {
	if p.PublicKey == nil {
		return "<unknown>"
	}
	if p.EndPoint != nil {
		return fmt.Sprintf("%s@%s", p.PublicKey.String(), p.EndPoint.String())
	}
	return p.PublicKey.String()
}

// Equal compares peers by public key and endpoint, the identity that matters
// for routing and cache-key purposes.
func (p Peer) Equal(other Peer) bool {
	if p.PublicKey == nil || other.PublicKey == nil {
		return p.PublicKey == other.PublicKey
	}
	if !p.PublicKey.Equal(other.PublicKey) {
		return false
	}
	if p.Bound() != other.Bound() {
		return false
	}
	if !p.Bound() {
		return true
	}
	return *p.EndPoint == *other.EndPoint
}

// BoundPeer is a Peer known to have a usable endpoint — the only kind of
// peer a caller may address with Send/SendWithReply/Broadcast.
type BoundPeer struct {
	Peer
}

// Address returns the addressable "host:port" for this peer.
func (b BoundPeer) Address() string {
	return b.EndPoint.String()
}

// NewBoundPeer constructs a BoundPeer directly, for callers that already
// know the remote endpoint (e.g. static peer lists, test fixtures).
func NewBoundPeer(pub *identity.PublicKey, host string, port int) BoundPeer {
	return BoundPeer{Peer: Peer{
		PublicKey: pub,
		EndPoint:  &EndPoint{Host: host, Port: port},
	}}
}
