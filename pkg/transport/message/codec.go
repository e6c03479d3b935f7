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

package message

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/sage-x-project/p2ptransport/pkg/transport/errs"
	"github.com/sage-x-project/p2ptransport/pkg/transport/identity"
	"github.com/sage-x-project/p2ptransport/pkg/transport/peer"
)

// VersionValidator implements the policy of spec §4.1: given the carried
// identity and the decoded remote peer/version, decide whether to accept.
// It returns nil to accept, or a *errs.DifferentAppProtocolVersionError
// (or any error) to reject.
type VersionValidator func(identity []byte, remote peer.Peer, remoteVersion peer.AppProtocolVersion) error

// LocalVersionValidator builds the default policy from spec §4.1: accept if
// the remote version equals local; otherwise require the signer be trusted
// (when a trusted set is configured) and require an optional caller-supplied
// callback to accept it. With no callback configured, any version mismatch
// is rejected unconditionally, even past the trusted-signer gate.
func LocalVersionValidator(local peer.AppProtocolVersion, trusted peer.TrustedSignerSet, callback func(peer.AppProtocolVersion) bool) VersionValidator {
	return func(id []byte, remote peer.Peer, remoteVersion peer.AppProtocolVersion) error {
		if local.Equal(remoteVersion) {
			return nil
		}
		if trusted != nil && !trusted.Trusts(remoteVersion) {
			return &errs.DifferentAppProtocolVersionError{Identity: id, Local: local, Remote: remoteVersion, Sender: remote}
		}
		if callback == nil {
			// No callback configured: reject any version mismatch, per
			// spec §4.1 ("Otherwise reject"), regardless of the
			// trusted-signer gate above.
			return &errs.DifferentAppProtocolVersionError{Identity: id, Local: local, Remote: remoteVersion, Sender: remote}
		}
		if callback(remoteVersion) {
			return nil
		}
		return &errs.DifferentAppProtocolVersionError{Identity: id, Local: local, Remote: remoteVersion, Sender: remote}
	}
}

// Encode assembles the multi-frame wire message for msg (spec §4.1): frames
// 2-5 plus body, signed with priv, with the signature inserted as frame 6.
// The identity frame (frame 1) is never produced here — it is injected only
// by the listening socket on delivery to a remote, per spec's "Absent from
// messages sent out through request sockets".
func Encode(msg Message, priv *identity.PrivateKey, local peer.Peer, timestamp time.Time, version peer.AppProtocolVersion) ([][]byte, error) {
	versionFrame, err := marshalVersion(version)
	if err != nil {
		return nil, err
	}
	typeFrame := []byte{byte(msg.Kind)}
	peerFrame, err := marshalPeer(local)
	if err != nil {
		return nil, err
	}
	timestampFrame := []byte(timestamp.UTC().Format(time.RFC3339Nano))

	signed := concatFrames(versionFrame, typeFrame, peerFrame, timestampFrame)
	signed = concatFrames(append([][]byte{signed}, msg.Body...)...)
	sig, err := priv.Sign(signed)
	if err != nil {
		return nil, fmt.Errorf("message: sign: %w", err)
	}

	frames := make([][]byte, 0, 6+len(msg.Body))
	frames = append(frames, versionFrame, typeFrame, peerFrame, timestampFrame, sig)
	frames = append(frames, msg.Body...)
	return frames, nil
}

// Decode parses a multi-frame wire message (spec §4.1 algorithm).
//
// expectIdentity must be true for messages read off the listening socket
// (frame 1 present) and false for replies read off an ephemeral request
// socket. lifespan of zero disables the timestamp gate.
func Decode(frames [][]byte, expectIdentity bool, validate VersionValidator, lifespan time.Duration, now time.Time) (Message, error) {
	var id []byte
	if expectIdentity {
		if len(frames) == 0 {
			return Message{}, &errs.InvalidMessageError{Reason: "missing identity frame"}
		}
		id, frames = frames[0], frames[1:]
	}
	if len(frames) < 5 {
		return Message{}, &errs.InvalidMessageError{Reason: "too few frames"}
	}
	versionFrame, typeFrame, peerFrame, timestampFrame, sigFrame := frames[0], frames[1], frames[2], frames[3], frames[4]
	body := frames[5:]

	version, err := unmarshalVersion(versionFrame)
	if err != nil {
		return Message{}, &errs.InvalidMessageError{Reason: "version frame", Cause: err}
	}
	if len(typeFrame) != 1 {
		return Message{}, &errs.InvalidMessageError{Reason: "type frame"}
	}
	kind := Kind(typeFrame[0])
	if !validKinds[kind] {
		return Message{}, &errs.InvalidMessageError{Reason: fmt.Sprintf("unknown message type %d", typeFrame[0])}
	}
	remote, err := unmarshalPeer(peerFrame)
	if err != nil {
		return Message{}, &errs.InvalidMessageError{Reason: "peer frame", Cause: err}
	}
	timestamp, err := time.Parse(time.RFC3339Nano, string(timestampFrame))
	if err != nil {
		return Message{}, &errs.InvalidMessageError{Reason: "timestamp frame", Cause: err}
	}
	timestamp = timestamp.UTC()

	// The body signature is checked before anything that trusts the claimed
	// Remote peer (the version validator, the timestamp gate) runs: every
	// error returned past this point is for a sender cryptographically
	// proven to hold PublicKey's private half, so callers (the router's
	// identity assignment in particular) can safely act on Remote even when
	// the message is ultimately rejected for an unrelated reason.
	signed := concatFrames(versionFrame, typeFrame, peerFrame, timestampFrame)
	signed = concatFrames(append([][]byte{signed}, body...)...)
	if remote.PublicKey == nil {
		return Message{}, &errs.InvalidMessageError{Reason: "missing public key"}
	}
	if err := remote.PublicKey.Verify(signed, sigFrame); err != nil {
		return Message{}, &errs.InvalidMessageError{Reason: "signature verification failed", Cause: err}
	}

	// A claimed Signer is worthless unless the signature over (Version,
	// Extra) actually verifies against it; otherwise an attacker can set
	// Signer to any trusted pubkey and an arbitrary Signature and pass
	// TrustedSignerSet.Trusts() on the strength of the claim alone.
	if version.Signer != nil {
		if err := version.Verify(); err != nil {
			return Message{}, &errs.InvalidMessageError{Reason: "version signature verification failed", Cause: err}
		}
	}

	if validate != nil {
		if err := validate(id, remote, version); err != nil {
			return Message{}, err
		}
	}

	if lifespan > 0 {
		delta := now.Sub(timestamp)
		if delta > lifespan || -delta > lifespan {
			return Message{}, &errs.InvalidTimestampError{Timestamp: timestamp, Now: now, Lifespan: lifespan}
		}
	}

	return Message{
		Kind:          kind,
		Body:          body,
		Remote:        remote,
		RemoteVersion: version,
		Timestamp:     timestamp,
		Identity:      id,
	}, nil
}

// concatFrames joins frame contents directly; Encode/Decode always apply it
// to the exact same ordered frame slices, so there is no ambiguity between
// what was signed and what is re-derived for verification.
func concatFrames(frames ...[]byte) []byte {
	var buf bytes.Buffer
	for _, f := range frames {
		buf.Write(f)
	}
	return buf.Bytes()
}

func marshalVersion(v peer.AppProtocolVersion) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, int64(v.Version)); err != nil {
		return nil, err
	}
	writeLenPrefixed(&buf, v.Extra)
	var signerBytes []byte
	if v.Signer != nil {
		signerBytes = v.Signer.Bytes()
	}
	writeLenPrefixed(&buf, signerBytes)
	writeLenPrefixed(&buf, v.Signature)
	return buf.Bytes(), nil
}

func unmarshalVersion(b []byte) (peer.AppProtocolVersion, error) {
	r := bytes.NewReader(b)
	var version int64
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return peer.AppProtocolVersion{}, err
	}
	extra, err := readLenPrefixed(r)
	if err != nil {
		return peer.AppProtocolVersion{}, err
	}
	signerBytes, err := readLenPrefixed(r)
	if err != nil {
		return peer.AppProtocolVersion{}, err
	}
	sig, err := readLenPrefixed(r)
	if err != nil {
		return peer.AppProtocolVersion{}, err
	}
	var signer *identity.PublicKey
	if len(signerBytes) > 0 {
		signer, err = identity.PublicKeyFromBytes(signerBytes)
		if err != nil {
			return peer.AppProtocolVersion{}, err
		}
	}
	return peer.AppProtocolVersion{Version: int(version), Extra: extra, Signer: signer, Signature: sig}, nil
}

func marshalPeer(p peer.Peer) ([]byte, error) {
	var buf bytes.Buffer
	var pubBytes []byte
	if p.PublicKey != nil {
		pubBytes = p.PublicKey.Bytes()
	}
	writeLenPrefixed(&buf, pubBytes)

	if p.EndPoint != nil {
		buf.WriteByte(1)
		writeLenPrefixed(&buf, []byte(p.EndPoint.Host))
		if err := binary.Write(&buf, binary.BigEndian, uint16(p.EndPoint.Port)); err != nil {
			return nil, err
		}
	} else {
		buf.WriteByte(0)
	}

	if p.PublicIP != nil {
		buf.WriteByte(1)
		writeLenPrefixed(&buf, p.PublicIP)
	} else {
		buf.WriteByte(0)
	}
	return buf.Bytes(), nil
}

func unmarshalPeer(b []byte) (peer.Peer, error) {
	r := bytes.NewReader(b)
	pubBytes, err := readLenPrefixed(r)
	if err != nil {
		return peer.Peer{}, err
	}
	var pub *identity.PublicKey
	if len(pubBytes) > 0 {
		pub, err = identity.PublicKeyFromBytes(pubBytes)
		if err != nil {
			return peer.Peer{}, err
		}
	}

	hasEndpoint, err := r.ReadByte()
	if err != nil {
		return peer.Peer{}, err
	}
	var ep *peer.EndPoint
	if hasEndpoint == 1 {
		host, err := readLenPrefixed(r)
		if err != nil {
			return peer.Peer{}, err
		}
		var port uint16
		if err := binary.Read(r, binary.BigEndian, &port); err != nil {
			return peer.Peer{}, err
		}
		ep = &peer.EndPoint{Host: string(host), Port: int(port)}
	}

	hasIP, err := r.ReadByte()
	if err != nil {
		return peer.Peer{}, err
	}
	var ip net.IP
	if hasIP == 1 {
		ipBytes, err := readLenPrefixed(r)
		if err != nil {
			return peer.Peer{}, err
		}
		ip = net.IP(ipBytes)
	}

	return peer.Peer{PublicKey: pub, EndPoint: ep, PublicIP: ip}, nil
}

func writeLenPrefixed(buf *bytes.Buffer, b []byte) {
	_ = binary.Write(buf, binary.BigEndian, uint32(len(b)))
	buf.Write(b)
}

func readLenPrefixed(r *bytes.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if n > 0 {
		if _, err := r.Read(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}
