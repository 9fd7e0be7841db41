// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package modbus

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout means no response, or fewer bytes than the request requires,
	// arrived within the transaction budget.
	ErrTimeout = errors.New("modbus: request timed out")
	// ErrChecksumMismatch means the trailing CRC does not match the frame.
	ErrChecksumMismatch = errors.New("modbus: response crc mismatch")
	// ErrAddressMismatch means the response came from another slave id.
	ErrAddressMismatch = errors.New("modbus: response slave id mismatch")
	// ErrMalformedResponse means the response is structurally unusable.
	ErrMalformedResponse = errors.New("modbus: malformed response")
	// ErrEchoMismatch means a write response did not echo the request.
	ErrEchoMismatch = fmt.Errorf("%w: echo does not match request", ErrMalformedResponse)
	// ErrInvalidArgument is returned before any I/O for out-of-range input.
	ErrInvalidArgument = errors.New("modbus: invalid argument")
)

// ExceptionError is an exception response reported by the slave.
type ExceptionError struct {
	FunctionCode  byte
	ExceptionCode byte
}

func (e *ExceptionError) Error() string {
	var name string
	switch e.ExceptionCode {
	case ExceptionCodeIllegalFunction:
		name = "illegal function"
	case ExceptionCodeIllegalDataAddress:
		name = "illegal data address"
	case ExceptionCodeIllegalDataValue:
		name = "illegal data value"
	case ExceptionCodeServerDeviceFailure:
		name = "server device failure"
	case ExceptionCodeAcknowledge:
		name = "acknowledge"
	case ExceptionCodeServerDeviceBusy:
		name = "server device busy"
	case ExceptionCodeMemoryParityError:
		name = "memory parity error"
	case ExceptionCodeGatewayPathUnavailable:
		name = "gateway path unavailable"
	case ExceptionCodeGatewayTargetDeviceFailedToRespond:
		name = "gateway target device failed to respond"
	default:
		name = "unknown"
	}
	return fmt.Sprintf("modbus: exception '%v' (%s), function '%v'", e.ExceptionCode, name, e.FunctionCode)
}

// TransportError wraps a hardware-level failure of the serial link.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("modbus: transport %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
