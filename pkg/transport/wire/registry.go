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

package wire

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
)

// IdentityRegistry stands in for the identity assignment a real ROUTER
// socket performs per connection, but keyed by the remote's public key hex
// rather than by connection, so a peer that disconnects and reconnects is
// handed the same identity (spec §4.5's "hand over": the newer connection
// wins and replies route to it).
type IdentityRegistry struct {
	mu         sync.Mutex
	byPeer     map[string][]byte // public key hex -> identity
	byIdentity map[string]*Conn  // identity hex -> active connection
}

// NewIdentityRegistry constructs an empty registry.
func NewIdentityRegistry() *IdentityRegistry {
	return &IdentityRegistry{
		byPeer:     make(map[string][]byte),
		byIdentity: make(map[string]*Conn),
	}
}

// Assign returns the identity for peerKeyHex, minting a fresh random one on
// first sight, and records conn as the currently active connection for it —
// superseding whatever connection previously held that identity.
func (r *IdentityRegistry) Assign(peerKeyHex string, conn *Conn) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byPeer[peerKeyHex]
	if !ok {
		id = make([]byte, 16)
		_, _ = rand.Read(id)
		r.byPeer[peerKeyHex] = id
	}
	r.byIdentity[hex.EncodeToString(id)] = conn
	return id
}

// Lookup returns the connection most recently assigned to identity, or false
// if identity was never assigned or its binding was cleared by Forget. A
// binding is not cleared when its connection closes.
func (r *IdentityRegistry) Lookup(identity []byte) (*Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.byIdentity[hex.EncodeToString(identity)]
	return conn, ok
}

// Forget clears the active-connection binding for identity if conn is still
// the one registered — a stale disconnect must not evict a newer handover.
func (r *IdentityRegistry) Forget(identity []byte, conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := hex.EncodeToString(identity)
	if current, ok := r.byIdentity[key]; ok && current == conn {
		delete(r.byIdentity, key)
	}
}
