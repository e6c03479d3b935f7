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

// Package message implements the C1 Message Codec: the typed Message
// variant (spec §3) and its multi-frame wire encoding (spec §4.1).
package message

import (
	"time"

	"github.com/sage-x-project/p2ptransport/pkg/transport/peer"
)

// Kind discriminates the closed set of message variants (spec §3).
type Kind byte

const (
	KindPing Kind = iota + 1
	KindPong
	KindGetBlockHashes
	KindBlockHashes
	KindTxIds
	KindGetBlocks
	KindGetTxs
	KindBlocks
	KindTx
	KindFindNeighbors
	KindNeighbors
	KindBlockHeaderMessage
	KindGetChainStatus
	KindChainStatus
	KindDifferentVersion
)

func (k Kind) String() string {
	switch k {
	case KindPing:
		return "Ping"
	case KindPong:
		return "Pong"
	case KindGetBlockHashes:
		return "GetBlockHashes"
	case KindBlockHashes:
		return "BlockHashes"
	case KindTxIds:
		return "TxIds"
	case KindGetBlocks:
		return "GetBlocks"
	case KindGetTxs:
		return "GetTxs"
	case KindBlocks:
		return "Blocks"
	case KindTx:
		return "Tx"
	case KindFindNeighbors:
		return "FindNeighbors"
	case KindNeighbors:
		return "Neighbors"
	case KindBlockHeaderMessage:
		return "BlockHeaderMessage"
	case KindGetChainStatus:
		return "GetChainStatus"
	case KindChainStatus:
		return "ChainStatus"
	case KindDifferentVersion:
		return "DifferentVersion"
	default:
		return "Unknown"
	}
}

// validKinds is used by Decode to reject unrecognized type frames.
var validKinds = map[Kind]bool{
	KindPing: true, KindPong: true, KindGetBlockHashes: true, KindBlockHashes: true,
	KindTxIds: true, KindGetBlocks: true, KindGetTxs: true, KindBlocks: true,
	KindTx: true, KindFindNeighbors: true, KindNeighbors: true,
	KindBlockHeaderMessage: true, KindGetChainStatus: true, KindChainStatus: true,
	KindDifferentVersion: true,
}

// Message is the discriminated variant of spec §3: a kind plus zero or more
// opaque body frames, and — once decoded — the sender's metadata.
type Message struct {
	Kind Kind
	Body [][]byte

	// Populated by Decode only.
	Remote        peer.Peer
	RemoteVersion peer.AppProtocolVersion
	Timestamp     time.Time
	Identity      []byte
}

// New constructs an outbound message of the given kind with the given body
// frames, ready for Encode. Remote/RemoteVersion/Timestamp/Identity are left
// zero — those are populated only by Decode on the receiving side.
func New(kind Kind, body ...[]byte) Message {
	return Message{Kind: kind, Body: body}
}

// Convenience constructors for each kind, matching spec §6's note that
// "Blocks carries one frame per serialized block, Tx carries one frame with
// the transaction bytes" — every kind's body-frame convention is spelled out
// here so callers never have to guess frame order.

func NewPing() Message                                  { return New(KindPing) }
func NewPong() Message                                   { return New(KindPong) }
func NewGetBlockHashes(locator []byte) Message           { return New(KindGetBlockHashes, locator) }
func NewBlockHashes(hashes ...[]byte) Message            { return New(KindBlockHashes, hashes...) }
func NewTxIds(ids ...[]byte) Message                     { return New(KindTxIds, ids...) }
func NewGetBlocks(hashes ...[]byte) Message              { return New(KindGetBlocks, hashes...) }
func NewGetTxs(ids ...[]byte) Message                    { return New(KindGetTxs, ids...) }
func NewBlocks(blocks ...[]byte) Message                 { return New(KindBlocks, blocks...) }
func NewTx(tx []byte) Message                            { return New(KindTx, tx) }
func NewFindNeighbors(target []byte) Message             { return New(KindFindNeighbors, target) }
func NewNeighbors(peers ...[]byte) Message                { return New(KindNeighbors, peers...) }
func NewBlockHeaderMessage(header []byte) Message        { return New(KindBlockHeaderMessage, header) }
func NewGetChainStatus() Message                         { return New(KindGetChainStatus) }
func NewChainStatus(status []byte) Message               { return New(KindChainStatus, status) }

// NewDifferentVersion builds the reply the inbound router sends when a
// remote's AppProtocolVersion fails validation (spec §4.5 step 5).
func NewDifferentVersion() Message { return New(KindDifferentVersion) }
