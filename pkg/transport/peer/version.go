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

package peer

import (
	"encoding/binary"

	"github.com/sage-x-project/p2ptransport/pkg/transport/identity"
)

// AppProtocolVersion is a signed compatibility token: a version integer plus
// opaque extra bytes, signed by the issuing signer's private key. Messages
// carry one on every frame so peers can gate on protocol compatibility.
type AppProtocolVersion struct {
	Version   int
	Extra     []byte
	Signer    *identity.PublicKey
	Signature []byte
}

// signedPayload is the byte region the signature covers: version || extra.
func signedPayload(version int, extra []byte) []byte {
	buf := make([]byte, 8+len(extra))
	binary.BigEndian.PutUint64(buf[:8], uint64(version))
	copy(buf[8:], extra)
	return buf
}

// Sign produces a new AppProtocolVersion signed by signer.
func Sign(version int, extra []byte, signer *identity.PrivateKey) (AppProtocolVersion, error) {
	sig, err := signer.Sign(signedPayload(version, extra))
	if err != nil {
		return AppProtocolVersion{}, err
	}
	return AppProtocolVersion{
		Version:   version,
		Extra:     extra,
		Signer:    signer.Public(),
		Signature: sig,
	}, nil
}

// Verify checks the signature over (Version, Extra) against Signer.
func (v AppProtocolVersion) Verify() error {
	return v.Signer.Verify(signedPayload(v.Version, v.Extra), v.Signature)
}

// Equal reports whether two versions carry the same version number. Per the
// validator policy (spec §4.1), only the version number participates in the
// equality check used to decide whether validation is even necessary.
func (v AppProtocolVersion) Equal(other AppProtocolVersion) bool {
	return v.Version == other.Version
}

// TrustedSignerSet is the configured set of signer identities whose
// AppProtocolVersion tokens are trusted. A nil set means "trust any".
type TrustedSignerSet map[string]struct{}

// NewTrustedSignerSet builds a set from a list of public keys. Passing no
// keys yields an empty (not nil) set, which trusts nobody — distinct from a
// nil TrustedSignerSet, which trusts everybody.
func NewTrustedSignerSet(keys ...*identity.PublicKey) TrustedSignerSet {
	set := make(TrustedSignerSet, len(keys))
	for _, k := range keys {
		set[k.Hex()] = struct{}{}
	}
	return set
}

// Trusts reports whether v's signer is in the set. A nil set trusts anyone.
func (s TrustedSignerSet) Trusts(v AppProtocolVersion) bool {
	if s == nil {
		return true
	}
	if v.Signer == nil {
		return false
	}
	_, ok := s[v.Signer.Hex()]
	return ok
}
