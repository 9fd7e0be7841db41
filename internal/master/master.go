// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package master runs Modbus RTU transactions against the slave devices on
// the panel's RS485 bus. A transaction is flush, send, receive and validate,
// and only one is ever on the wire.
package master

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ffutop/modbus-panel/internal/config"
	"github.com/ffutop/modbus-panel/modbus"
	"github.com/ffutop/modbus-panel/modbus/rtu"
	"github.com/ffutop/modbus-panel/transport"
)

// Master is the transaction engine of the bus.
type Master struct {
	ch     transport.Channel
	cfg    config.BusConfig
	relays RelayTable

	mu sync.Mutex
}

// New creates a Master on ch. Zero timeouts in cfg fall back to the
// controller's defaults.
func New(ch transport.Channel, cfg config.BusConfig, relays RelayTable) *Master {
	if cfg.SlaveID == 0 {
		cfg.SlaveID = config.DefaultSlaveID
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 100 * time.Millisecond
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 100 * time.Millisecond
	}
	if cfg.MultiReadTimeout == 0 {
		cfg.MultiReadTimeout = 500 * time.Millisecond
	}
	return &Master{
		ch:     ch,
		cfg:    cfg,
		relays: relays,
	}
}

// SlaveID returns the default slave the panel talks to.
func (m *Master) SlaveID() byte {
	return m.cfg.SlaveID
}

// Relays returns the relay address table.
func (m *Master) Relays() RelayTable {
	return m.relays
}

// WriteSingleRegister writes value to a holding register (FC 0x06).
func (m *Master) WriteSingleRegister(ctx context.Context, slaveID byte, address, value uint16) error {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint16(payload[0:], address)
	binary.BigEndian.PutUint16(payload[2:], value)

	_, err := m.transact(ctx, slaveID, modbus.FuncCodeWriteSingleRegister, payload, rtu.WriteEchoSize, m.cfg.WriteTimeout)
	return err
}

// ReadHoldingRegisters reads count consecutive holding registers (FC 0x03).
func (m *Master) ReadHoldingRegisters(ctx context.Context, slaveID byte, address, count uint16) ([]uint16, error) {
	if count < 1 || count > rtu.MaxReadRegisters {
		return nil, fmt.Errorf("%w: quantity %d out of range 1-%d", modbus.ErrInvalidArgument, count, rtu.MaxReadRegisters)
	}
	payload := make([]byte, 4)
	binary.BigEndian.PutUint16(payload[0:], address)
	binary.BigEndian.PutUint16(payload[2:], count)

	timeout := m.cfg.ReadTimeout
	if count > 1 {
		timeout = m.cfg.MultiReadTimeout
	}
	data, err := m.transact(ctx, slaveID, modbus.FuncCodeReadHoldingRegisters, payload,
		rtu.ResponseLength(modbus.FuncCodeReadHoldingRegisters, count), timeout)
	if err != nil {
		return nil, err
	}

	want := 2 * int(count)
	if int(data[0]) < want || len(data)-1 < want {
		return nil, fmt.Errorf("%w: byte count '%v' does not match quantity '%v'", modbus.ErrMalformedResponse, data[0], count)
	}
	values := make([]uint16, count)
	for i := range values {
		values[i] = binary.BigEndian.Uint16(data[1+2*i:])
	}
	return values, nil
}

// WriteSingleCoil switches a coil on or off (FC 0x05). The response must
// echo the address and value.
func (m *Master) WriteSingleCoil(ctx context.Context, slaveID byte, address uint16, on bool) error {
	value := modbus.CoilOff
	if on {
		value = modbus.CoilOn
	}
	payload := make([]byte, 4)
	binary.BigEndian.PutUint16(payload[0:], address)
	binary.BigEndian.PutUint16(payload[2:], value)

	data, err := m.transact(ctx, slaveID, modbus.FuncCodeWriteSingleCoil, payload, rtu.WriteEchoSize, m.cfg.WriteTimeout)
	if err != nil {
		return err
	}
	if !bytes.Equal(data, payload) {
		return fmt.Errorf("%w: got % X, want % X", modbus.ErrEchoMismatch, data, payload)
	}
	return nil
}

// ToggleRelay drives relay (1..8) to state (0 or 1) on the default slave.
func (m *Master) ToggleRelay(ctx context.Context, relay int, state uint16) error {
	if state > 1 {
		return fmt.Errorf("%w: relay state %d is not 0 or 1", modbus.ErrInvalidArgument, state)
	}
	address, err := m.relays.Address(relay)
	if err != nil {
		return err
	}
	return m.WriteSingleRegister(ctx, m.cfg.SlaveID, address, state)
}

// transact performs one request/response exchange and returns the validated
// payload. size is the length of a normal response.
func (m *Master) transact(ctx context.Context, slaveID, functionCode byte, payload []byte, size int, timeout time.Duration) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req, err := rtu.EncodeRequest(slaveID, functionCode, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", modbus.ErrInvalidArgument, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Stale bytes from an earlier late answer would misalign this response
	m.ch.Flush()

	slog.Debug("master: sending", "slaveID", slaveID, "func", functionCode, "frame", hex.EncodeToString(req))
	if err := m.ch.Send(req); err != nil {
		return nil, err
	}

	resp, err := m.ch.Receive(size, timeout)
	if err != nil {
		return nil, err
	}
	slog.Debug("master: received", "slaveID", slaveID, "func", functionCode, "frame", hex.EncodeToString(resp))

	if rtu.IsException(resp) {
		_, err := rtu.DecodeResponse(resp[:rtu.ExceptionSize], slaveID, functionCode)
		return nil, err
	}
	if len(resp) < size {
		return nil, fmt.Errorf("%w: got %d of %d bytes within %v", modbus.ErrTimeout, len(resp), size, timeout)
	}
	return rtu.DecodeResponse(resp, slaveID, functionCode)
}
