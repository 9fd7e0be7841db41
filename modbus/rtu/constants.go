// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

const (
	MinSize = 4
	MaxSize = 256

	ExceptionSize = 5

	// WriteEchoSize is the size of a Write Single Coil/Register response,
	// which echoes the 8-byte request.
	WriteEchoSize = 8

	// MaxReadRegisters is the largest quantity a single 0x03 request may ask for.
	MaxReadRegisters = 125
)
