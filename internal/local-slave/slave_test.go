// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package localslave

import (
	"bytes"
	"testing"

	"github.com/ffutop/modbus-panel/internal/local-slave/model"
	"github.com/ffutop/modbus-panel/modbus"
)

func TestProcess(t *testing.T) {
	m := model.NewDataModel()
	m.SetRecord(0xEA74, "Leak test")
	m.SetRecord(0xEA80, "Pump")
	s := NewLocalSlave(m)

	tests := []struct {
		name string
		req  modbus.ProtocolDataUnit
		want modbus.ProtocolDataUnit
	}{
		{
			"ReadProgramName",
			modbus.ProtocolDataUnit{FunctionCode: 0x03, Data: []byte{0xEA, 0x74, 0x00, 0x02}},
			modbus.ProtocolDataUnit{FunctionCode: 0x03, Data: []byte{0x04, 'L', 'e', 'a', 'k'}},
		},
		{
			"ReadNameRecord",
			modbus.ProtocolDataUnit{FunctionCode: 0x03, Data: []byte{0xEA, 0x80, 0x00, 0x03}},
			modbus.ProtocolDataUnit{FunctionCode: 0x03, Data: []byte{0x06, 'P', 'u', 'm', 'p', 0x00, 0x00}},
		},
		{
			"WriteRegisterEcho",
			modbus.ProtocolDataUnit{FunctionCode: 0x06, Data: []byte{0x46, 0xB3, 0x00, 0x01}},
			modbus.ProtocolDataUnit{FunctionCode: 0x06, Data: []byte{0x46, 0xB3, 0x00, 0x01}},
		},
		{
			"WriteCoilEcho",
			modbus.ProtocolDataUnit{FunctionCode: 0x05, Data: []byte{0x00, 0x0A, 0xFF, 0x00}},
			modbus.ProtocolDataUnit{FunctionCode: 0x05, Data: []byte{0x00, 0x0A, 0xFF, 0x00}},
		},
		{
			"BadCoilValue",
			modbus.ProtocolDataUnit{FunctionCode: 0x05, Data: []byte{0x00, 0x0A, 0x12, 0x34}},
			modbus.ProtocolDataUnit{FunctionCode: 0x85, Data: []byte{modbus.ExceptionCodeIllegalDataValue}},
		},
		{
			"TooManyRegisters",
			modbus.ProtocolDataUnit{FunctionCode: 0x03, Data: []byte{0x00, 0x00, 0x00, 0x7E}},
			modbus.ProtocolDataUnit{FunctionCode: 0x83, Data: []byte{modbus.ExceptionCodeIllegalDataValue}},
		},
		{
			"PastEndOfMemory",
			modbus.ProtocolDataUnit{FunctionCode: 0x03, Data: []byte{0xFF, 0xFF, 0x00, 0x02}},
			modbus.ProtocolDataUnit{FunctionCode: 0x83, Data: []byte{modbus.ExceptionCodeIllegalDataAddress}},
		},
		{
			"UnsupportedFunction",
			modbus.ProtocolDataUnit{FunctionCode: 0x10, Data: []byte{0x00}},
			modbus.ProtocolDataUnit{FunctionCode: 0x90, Data: []byte{modbus.ExceptionCodeIllegalFunction}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Process(tt.req)
			if got.FunctionCode != tt.want.FunctionCode || !bytes.Equal(got.Data, tt.want.Data) {
				t.Errorf("Process() = %02X % X, want %02X % X", got.FunctionCode, got.Data, tt.want.FunctionCode, tt.want.Data)
			}
		})
	}

	if m.Register(0x46B3) != 1 {
		t.Error("register write not applied")
	}
	if !m.Coil(0x0A) {
		t.Error("coil write not applied")
	}
}
