// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"fmt"

	"github.com/ffutop/modbus-panel/modbus"
	"github.com/ffutop/modbus-panel/modbus/crc"
)

// EncodeRequest encodes a request in an RTU frame:
//
//	Slave Address   : 1 byte
//	Function        : 1 byte
//	Data            : 0 up to 252 bytes
//	CRC             : 2 bytes, low byte first
func EncodeRequest(slaveID, functionCode byte, payload []byte) ([]byte, error) {
	length := len(payload) + 4
	if length > MaxSize {
		return nil, fmt.Errorf("modbus: length of data '%v' must not be bigger than '%v'", length, MaxSize)
	}
	raw := make([]byte, length)

	raw[0] = slaveID
	raw[1] = functionCode
	copy(raw[2:], payload)

	checksum := crc.Checksum(raw[0 : length-2])
	raw[length-2] = byte(checksum)
	raw[length-1] = byte(checksum >> 8)
	return raw, nil
}

// DecodeResponse validates a response frame and returns its payload, the
// bytes between the function code and the CRC. Checks run in this order:
// slave id, exception flag, CRC, function code.
func DecodeResponse(raw []byte, slaveID, functionCode byte) ([]byte, error) {
	length := len(raw)
	if length < MinSize {
		return nil, fmt.Errorf("%w: length '%v' does not meet minimum '%v'", modbus.ErrMalformedResponse, length, MinSize)
	}
	if raw[0] != slaveID {
		return nil, fmt.Errorf("%w: got '%v', want '%v'", modbus.ErrAddressMismatch, raw[0], slaveID)
	}
	if raw[1]&modbus.ExceptionFlag != 0 {
		return nil, &modbus.ExceptionError{
			FunctionCode:  raw[1] &^ modbus.ExceptionFlag,
			ExceptionCode: raw[2],
		}
	}

	expected := crc.Checksum(raw[0 : length-2])
	checksum := uint16(raw[length-1])<<8 | uint16(raw[length-2])
	if checksum != expected {
		return nil, fmt.Errorf("%w: response crc '%v' does not match expected '%v'", modbus.ErrChecksumMismatch, checksum, expected)
	}
	if raw[1] != functionCode {
		return nil, fmt.Errorf("%w: function code '%v' does not match request '%v'", modbus.ErrMalformedResponse, raw[1], functionCode)
	}
	return raw[2 : length-2], nil
}

// IsException reports whether raw holds at least a complete exception frame.
func IsException(raw []byte) bool {
	return len(raw) >= ExceptionSize && raw[1]&modbus.ExceptionFlag != 0
}

// ResponseLength returns the expected length of a normal response ADU.
// quantity is only used by read functions.
func ResponseLength(functionCode byte, quantity uint16) int {
	switch functionCode {
	case modbus.FuncCodeReadHoldingRegisters:
		// slave + function + byte count + data + crc
		return 3 + 2*int(quantity) + 2
	case modbus.FuncCodeWriteSingleCoil,
		modbus.FuncCodeWriteSingleRegister:
		return WriteEchoSize
	default:
		return MaxSize
	}
}
