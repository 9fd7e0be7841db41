// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package model

import (
	"encoding/binary"
	"fmt"
	"sync"
)

const (
	MaxAddress = 65535
)

// DataModel holds the memory of a simulated test-equipment controller.
// It uses a simple flat memory model covering the full 16-bit address space.
type DataModel struct {
	mu sync.RWMutex

	// 0x Coils (Read/Write). Stored as 1 (ON) or 0 (OFF).
	Coils []byte
	// 4x Holding Registers (Read/Write).
	HoldingRegisters []uint16
	// Records are indexed blocks, such as the program name table, that the
	// controller serves whole to any read starting at their address.
	Records map[uint16][]byte
}

// NewDataModel creates a new memory model initialized to zero.
func NewDataModel() *DataModel {
	return &DataModel{
		Coils:            make([]byte, MaxAddress+1),
		HoldingRegisters: make([]uint16, MaxAddress+1),
		Records:          make(map[uint16][]byte),
	}
}

// Coil reports whether the coil at address is ON.
func (m *DataModel) Coil(address uint16) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.Coils[address] != 0
}

// Register returns the holding register at address.
func (m *DataModel) Register(address uint16) uint16 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.HoldingRegisters[address]
}

// WriteSingleCoil writes a single coil. value must be 0xFF00 (ON) or 0x0000 (OFF).
func (m *DataModel) WriteSingleCoil(address uint16, value uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch value {
	case 0xFF00:
		m.Coils[address] = 1
	case 0x0000:
		m.Coils[address] = 0
	default:
		return fmt.Errorf("invalid coil value 0x%04X", value)
	}
	return nil
}

// ReadHoldingRegisters reads a range of holding registers and returns them as BigEndian bytes.
func (m *DataModel) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := validateRange(address, quantity); err != nil {
		return nil, err
	}

	result := make([]byte, int(quantity)*2)
	if rec, ok := m.Records[address]; ok {
		copy(result, rec)
		return result, nil
	}
	for i := 0; i < int(quantity); i++ {
		val := m.HoldingRegisters[int(address)+i]
		binary.BigEndian.PutUint16(result[i*2:], val)
	}
	return result, nil
}

// WriteSingleRegister writes a single holding register.
func (m *DataModel) WriteSingleRegister(address uint16, value uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.HoldingRegisters[address] = value
	return nil
}

func validateRange(address, quantity uint16) error {
	if quantity == 0 {
		return fmt.Errorf("quantity must be greater than 0")
	}
	// address is 0-based.
	if int(address)+int(quantity) > MaxAddress+1 {
		return fmt.Errorf("address range out of bounds")
	}
	return nil
}

// SetRecord stores s as the record at address. Reads starting at address
// return s as ASCII, two characters per register, zero-filled.
func (m *DataModel) SetRecord(address uint16, s string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Records[address] = []byte(s)
}
