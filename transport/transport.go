// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transport

import "time"

// Channel is the half-duplex link to the field bus.
//
// Implementations never transmit and receive at the same time: Send,
// Receive and Flush are serialized. Callers that run a request/response
// exchange must also make sure no other exchange interleaves with theirs.
type Channel interface {
	// Send transmits b. A non-nil error is a hardware failure.
	Send(b []byte) error
	// Receive blocks until max bytes arrived or timeout elapsed and
	// returns whatever was accumulated, possibly nothing. It only fails
	// on hardware errors, never on timeout.
	Receive(max int, timeout time.Duration) ([]byte, error)
	// Flush discards any unread buffered input.
	Flush()
	Close() error
}
