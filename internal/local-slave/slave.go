// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package localslave

import (
	"encoding/binary"

	"github.com/ffutop/modbus-panel/internal/local-slave/model"
	"github.com/ffutop/modbus-panel/modbus"
)

// LocalSlave answers the function codes the panel uses on top of a DataModel.
type LocalSlave struct {
	model *model.DataModel
}

// NewLocalSlave creates a new LocalSlave.
func NewLocalSlave(m *model.DataModel) *LocalSlave {
	return &LocalSlave{model: m}
}

// Model returns the memory backing the slave.
func (s *LocalSlave) Model() *model.DataModel {
	return s.model
}

// Process executes the Modbus Function Code against the memory model.
func (s *LocalSlave) Process(req modbus.ProtocolDataUnit) modbus.ProtocolDataUnit {
	switch req.FunctionCode {
	case modbus.FuncCodeReadHoldingRegisters:
		return s.handleReadHoldingRegisters(req)
	case modbus.FuncCodeWriteSingleCoil:
		return s.handleWriteSingleCoil(req)
	case modbus.FuncCodeWriteSingleRegister:
		return s.handleWriteSingleRegister(req)
	default:
		return Exception(req.FunctionCode, modbus.ExceptionCodeIllegalFunction)
	}
}

func (s *LocalSlave) handleReadHoldingRegisters(req modbus.ProtocolDataUnit) modbus.ProtocolDataUnit {
	if len(req.Data) != 4 {
		return Exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	quantity := binary.BigEndian.Uint16(req.Data[2:4])

	if quantity < 1 || quantity > 125 {
		return Exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}

	data, err := s.model.ReadHoldingRegisters(address, quantity)
	if err != nil {
		return Exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataAddress)
	}

	respData := make([]byte, 1+len(data))
	respData[0] = byte(len(data))
	copy(respData[1:], data)

	return modbus.ProtocolDataUnit{
		FunctionCode: req.FunctionCode,
		Data:         respData,
	}
}

func (s *LocalSlave) handleWriteSingleCoil(req modbus.ProtocolDataUnit) modbus.ProtocolDataUnit {
	if len(req.Data) != 4 {
		return Exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	value := binary.BigEndian.Uint16(req.Data[2:4])

	if err := s.model.WriteSingleCoil(address, value); err != nil {
		return Exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}

	return req // Echo request
}

func (s *LocalSlave) handleWriteSingleRegister(req modbus.ProtocolDataUnit) modbus.ProtocolDataUnit {
	if len(req.Data) != 4 {
		return Exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	value := binary.BigEndian.Uint16(req.Data[2:4])

	if err := s.model.WriteSingleRegister(address, value); err != nil {
		return Exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataAddress)
	}

	return req // Echo request
}

// Exception builds the exception response for funcCode.
func Exception(funcCode byte, code byte) modbus.ProtocolDataUnit {
	return modbus.ProtocolDataUnit{
		FunctionCode: funcCode | modbus.ExceptionFlag,
		Data:         []byte{code},
	}
}
