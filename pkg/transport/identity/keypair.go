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

// Package identity provides the signing key pair every wire message is
// authenticated with. It mirrors the teacher repo's secp256k1 KeyPair,
// trimmed to the Sign/Verify/PublicKey surface the transport needs.
package identity

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
)

// ErrInvalidSignature is returned by Verify when a signature does not match.
var ErrInvalidSignature = errors.New("identity: invalid signature")

// PublicKey identifies a node on the wire. It is always carried as the
// compressed secp256k1 point (33 bytes).
type PublicKey struct {
	key *secp256k1.PublicKey
}

// PrivateKey signs outbound messages and AppProtocolVersion tokens.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// Generate creates a fresh random key pair.
func Generate() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key: key}, nil
}

// FromBytes reconstructs a private key from its raw 32-byte scalar.
func FromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, errors.New("identity: private key must be 32 bytes")
	}
	key := secp256k1.PrivKeyFromBytes(b)
	return &PrivateKey{key: key}, nil
}

// Bytes returns the raw 32-byte scalar.
func (p *PrivateKey) Bytes() []byte {
	return p.key.Serialize()
}

// Public returns the corresponding public key.
func (p *PrivateKey) Public() *PublicKey {
	return &PublicKey{key: p.key.PubKey()}
}

// Sign produces an Ethereum-compatible 65-byte signature (r, s, recovery id)
// over the Keccak256 hash of message.
func (p *PrivateKey) Sign(message []byte) ([]byte, error) {
	hash := ethcrypto.Keccak256(message)
	return ethcrypto.Sign(hash, p.key.ToECDSA())
}

// PublicKeyFromBytes parses a compressed secp256k1 public key (33 bytes).
func PublicKeyFromBytes(b []byte) (*PublicKey, error) {
	key, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return nil, err
	}
	return &PublicKey{key: key}, nil
}

// Bytes returns the compressed 33-byte point.
func (pk *PublicKey) Bytes() []byte {
	return pk.key.SerializeCompressed()
}

// String renders the public key as base58, matching the pack's Solana-style
// address encoding (mr-tron/base58) used for compact, copy-pasteable peer ids.
func (pk *PublicKey) String() string {
	return base58.Encode(pk.Bytes())
}

// Hex renders the public key as a hex string, used for log fields and map keys
// where base58's variable width is inconvenient.
func (pk *PublicKey) Hex() string {
	return hex.EncodeToString(pk.Bytes())
}

// Equal reports whether two public keys encode the same point.
func (pk *PublicKey) Equal(other *PublicKey) bool {
	if pk == nil || other == nil {
		return pk == other
	}
	return pk.key.IsEqual(other.key)
}

// Verify checks a 64- or 65-byte ECDSA signature over Keccak256(message).
func (pk *PublicKey) Verify(message, signature []byte) error {
	hash := ethcrypto.Keccak256(message)
	if len(signature) == 65 {
		signature = signature[:64]
	}
	if len(signature) != 64 {
		return ErrInvalidSignature
	}
	r := new(big.Int).SetBytes(signature[:32])
	s := new(big.Int).SetBytes(signature[32:])
	if !ecdsa.Verify(pk.key.ToECDSA(), hash, r, s) {
		return ErrInvalidSignature
	}
	return nil
}
