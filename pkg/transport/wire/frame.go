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

// Package wire is the raw transport underneath the message codec: a
// length-prefixed multi-frame stream socket standing in for the ROUTER/DEALER
// multipart socket the original design assumed. No off-the-shelf multipart
// socket library in the dependency pack speaks that wire protocol (ZeroMQ's
// ROUTER/DEALER semantics), so frame grouping is implemented directly over
// net.Conn; see DESIGN.md for why this is the one deliberate stdlib fallback.
package wire

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"
)

// maxFrameCount and maxFrameLength bound a single read against a peer that
// sends a bogus length prefix; both are generous for block/tx payloads.
const (
	maxFrameCount  = 1 << 16
	maxFrameLength = 64 << 20
)

// Conn is one multi-frame stream connection: every write and every read
// moves a complete frame group ([][]byte), never a partial one.
type Conn struct {
	raw net.Conn
	r   *bufio.Reader
}

// NewConn wraps an established net.Conn.
func NewConn(raw net.Conn) *Conn {
	return &Conn{raw: raw, r: bufio.NewReader(raw)}
}

// Dial opens a fresh connection to address, used by C4 for per-request
// ephemeral sockets and by C3 for cached outbound sockets.
func Dial(ctx context.Context, address string, timeout time.Duration) (*Conn, error) {
	var d net.Dialer
	dialCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	raw, err := d.DialContext(dialCtx, "tcp", address)
	if err != nil {
		return nil, err
	}
	return NewConn(raw), nil
}

// RemoteAddr reports the underlying connection's remote address.
func (c *Conn) RemoteAddr() net.Addr { return c.raw.RemoteAddr() }

// Close tears down the underlying connection.
func (c *Conn) Close() error { return c.raw.Close() }

// WriteFrames writes one frame group: a uint32 frame count, then per frame a
// uint32 length prefix followed by its bytes. deadline of zero means no
// deadline.
func (c *Conn) WriteFrames(frames [][]byte, deadline time.Time) error {
	if err := c.raw.SetWriteDeadline(deadline); err != nil {
		return err
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(frames)))
	if _, err := c.raw.Write(header[:]); err != nil {
		return err
	}
	for _, f := range frames {
		binary.BigEndian.PutUint32(header[:], uint32(len(f)))
		if _, err := c.raw.Write(header[:]); err != nil {
			return err
		}
		if len(f) > 0 {
			if _, err := c.raw.Write(f); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReadFrames blocks for one complete frame group, or returns an error if
// deadline elapses first. deadline of zero means no deadline.
func (c *Conn) ReadFrames(deadline time.Time) ([][]byte, error) {
	if err := c.raw.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	var header [4]byte
	if _, err := io.ReadFull(c.r, header[:]); err != nil {
		return nil, err
	}
	count := binary.BigEndian.Uint32(header[:])
	if count > maxFrameCount {
		return nil, fmt.Errorf("wire: frame count %d exceeds limit", count)
	}
	frames := make([][]byte, count)
	for i := range frames {
		if _, err := io.ReadFull(c.r, header[:]); err != nil {
			return nil, err
		}
		n := binary.BigEndian.Uint32(header[:])
		if n > maxFrameLength {
			return nil, fmt.Errorf("wire: frame length %d exceeds limit", n)
		}
		buf := make([]byte, n)
		if n > 0 {
			if _, err := io.ReadFull(c.r, buf); err != nil {
				return nil, err
			}
		}
		frames[i] = buf
	}
	return frames, nil
}

// Listener accepts incoming frame-group connections.
type Listener struct {
	raw net.Listener
}

// Listen binds address ("host:port"; port 0 picks a free port).
func Listen(address string) (*Listener, error) {
	raw, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	return &Listener{raw: raw}, nil
}

// Addr reports the bound local address, used to recover the actual port when
// listen_port was 0.
func (l *Listener) Addr() net.Addr { return l.raw.Addr() }

// Accept blocks for the next inbound connection.
func (l *Listener) Accept() (*Conn, error) {
	raw, err := l.raw.Accept()
	if err != nil {
		return nil, err
	}
	return NewConn(raw), nil
}

// Close stops accepting and releases the bound port.
func (l *Listener) Close() error { return l.raw.Close() }
