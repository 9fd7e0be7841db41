// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package panel

import (
	"context"
	"errors"
	"fmt"

	"github.com/ffutop/modbus-panel/internal/programs"
	"github.com/ffutop/modbus-panel/modbus"
)

// Status returns the short text the status line shows for an outcome.
func Status(err error) string {
	var exc *modbus.ExceptionError
	var te *modbus.TransportError

	switch {
	case err == nil:
		return "OK"
	case errors.As(err, &exc):
		return fmt.Sprintf("Device error 0x%02X", exc.ExceptionCode)
	case errors.As(err, &te):
		return "Bus error"
	case errors.Is(err, modbus.ErrInvalidArgument):
		return "Invalid input"
	case errors.Is(err, modbus.ErrTimeout):
		return "No response"
	case errors.Is(err, modbus.ErrChecksumMismatch):
		return "Checksum error"
	case errors.Is(err, modbus.ErrAddressMismatch):
		return "Wrong device answered"
	case errors.Is(err, modbus.ErrMalformedResponse):
		return "Invalid response"
	case errors.Is(err, programs.ErrScanInProgress):
		return "Scan already running"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Canceled"
	default:
		return "Error"
	}
}
