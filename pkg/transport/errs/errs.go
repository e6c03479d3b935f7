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

// Package errs defines the transport's error taxonomy (spec §7): each
// failure mode a distinct type so callers can type-switch/errors.As instead
// of matching on strings, in the spirit of the teacher's SageError but
// specialized per failure mode instead of one generic code.
package errs

import (
	"fmt"
	"time"

	"github.com/sage-x-project/p2ptransport/pkg/transport/peer"
)

// DifferentAppProtocolVersionError is returned when a remote's
// AppProtocolVersion fails the version validator (spec §4.1). Sender carries
// the peer that was decoded and signature-verified before the version check
// ran, so a caller can still route a reply to it despite the rejection.
type DifferentAppProtocolVersionError struct {
	Identity []byte
	Local    peer.AppProtocolVersion
	Remote   peer.AppProtocolVersion
	Sender   peer.Peer
}

func (e *DifferentAppProtocolVersionError) Error() string {
	return fmt.Sprintf("different app protocol version: local=%d remote=%d",
		e.Local.Version, e.Remote.Version)
}

// InvalidTimestampError is returned when a decoded message's timestamp falls
// outside the configured message lifespan.
type InvalidTimestampError struct {
	Timestamp time.Time
	Now       time.Time
	Lifespan  time.Duration
}

func (e *InvalidTimestampError) Error() string {
	return fmt.Sprintf("invalid timestamp: %s is outside lifespan %s of %s",
		e.Timestamp.Format(time.RFC3339), e.Lifespan, e.Now.Format(time.RFC3339))
}

// InvalidMessageError is returned for framing, type, or signature failures.
type InvalidMessageError struct {
	Reason string
	Cause  error
}

func (e *InvalidMessageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid message: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("invalid message: %s", e.Reason)
}

func (e *InvalidMessageError) Unwrap() error { return e.Cause }

// TimeoutError is returned when a send or receive exceeds its deadline.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout: %s exceeded %s", e.Op, e.Timeout)
}

// CancelledError is returned when the caller's or the transport's
// cancellation fired before completion.
type CancelledError struct {
	Cause error
}

func (e *CancelledError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cancelled: %v", e.Cause)
	}
	return "cancelled"
}

func (e *CancelledError) Unwrap() error { return e.Cause }

// TransportError covers programmatic misuse (already running, disposed, not
// running) and bind failures. Not retried.
type TransportError struct {
	Op    string
	Cause error
}

func (e *TransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transport error: %s: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("transport error: %s", e.Op)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// NewTransportError wraps cause under a named operation.
func NewTransportError(op string, cause error) *TransportError {
	return &TransportError{Op: op, Cause: cause}
}
