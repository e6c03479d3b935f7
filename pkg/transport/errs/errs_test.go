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

package errs

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInvalidMessageUnwrap(t *testing.T) {
	cause := errors.New("bad signature")
	err := &InvalidMessageError{Reason: "signature mismatch", Cause: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "signature mismatch")
}

func TestTransportErrorUnwrap(t *testing.T) {
	cause := errors.New("bind: address in use")
	err := NewTransportError("start", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "start")
}

func TestCancelledErrorUnwrap(t *testing.T) {
	err := &CancelledError{Cause: errors.New("context canceled")}
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")
}

func TestTimeoutErrorMessage(t *testing.T) {
	err := &TimeoutError{Op: "receive", Timeout: 500 * time.Millisecond}
	assert.Contains(t, err.Error(), "receive")
	assert.Contains(t, err.Error(), "500ms")
}
