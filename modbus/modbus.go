// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package modbus holds the protocol vocabulary shared by the frame codec,
// the serial channels and the transaction engine.
package modbus

// Function codes used on the panel bus.
const (
	FuncCodeReadHoldingRegisters = 0x03
	FuncCodeWriteSingleCoil      = 0x05
	FuncCodeWriteSingleRegister  = 0x06
)

// ExceptionFlag is set in the function code byte of an exception response.
const ExceptionFlag = 0x80

// Exception codes reported by slave devices.
const (
	ExceptionCodeIllegalFunction                    = 1
	ExceptionCodeIllegalDataAddress                 = 2
	ExceptionCodeIllegalDataValue                   = 3
	ExceptionCodeServerDeviceFailure                = 4
	ExceptionCodeAcknowledge                        = 5
	ExceptionCodeServerDeviceBusy                   = 6
	ExceptionCodeMemoryParityError                  = 8
	ExceptionCodeGatewayPathUnavailable             = 10
	ExceptionCodeGatewayTargetDeviceFailedToRespond = 11
)

// Coil values written by Write Single Coil.
const (
	CoilOn  uint16 = 0xFF00
	CoilOff uint16 = 0x0000
)

// ProtocolDataUnit (PDU) is independent of underlying communication layers.
type ProtocolDataUnit struct {
	FunctionCode byte
	Data         []byte
}
