// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package sim provides a serial channel wired to an in-memory slave device.
// It behaves like a half-duplex bus with a single slave on it: requests are
// answered after a latency, requests for other slave ids or with a bad CRC
// go unanswered, and unread bytes linger until flushed.
package sim

import (
	"encoding/hex"
	"errors"
	"log/slog"
	"sync"
	"time"

	localslave "github.com/ffutop/modbus-panel/internal/local-slave"
	"github.com/ffutop/modbus-panel/internal/local-slave/model"
	"github.com/ffutop/modbus-panel/modbus"
	"github.com/ffutop/modbus-panel/modbus/crc"
	"github.com/ffutop/modbus-panel/modbus/rtu"
)

var errClosed = errors.New("sim: channel closed")

// Fault rewrites the response frame to one request. A nil result means
// the device stays silent.
type Fault func(frame []byte) []byte

// Channel implements transport.Channel on top of a LocalSlave.
type Channel struct {
	SlaveID byte
	// Latency is the time between the end of a request and the response
	// becoming readable.
	Latency time.Duration

	slave *localslave.LocalSlave

	mu       sync.Mutex
	pending  []byte
	ready    time.Time
	faults   []Fault
	requests [][]byte
	closed   bool
}

// New creates a channel with one slave answering as slaveID.
func New(slaveID byte, m *model.DataModel) *Channel {
	if m == nil {
		m = model.NewDataModel()
	}
	return &Channel{
		SlaveID: slaveID,
		slave:   localslave.NewLocalSlave(m),
	}
}

// Model returns the memory of the simulated slave.
func (c *Channel) Model() *model.DataModel {
	return c.slave.Model()
}

// Inject queues faults, applied one per request in order.
func (c *Channel) Inject(faults ...Fault) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.faults = append(c.faults, faults...)
}

// Requests returns a copy of every frame sent so far.
func (c *Channel) Requests() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([][]byte, len(c.requests))
	copy(out, c.requests)
	return out
}

func (c *Channel) Send(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return &modbus.TransportError{Op: "send", Err: errClosed}
	}
	c.requests = append(c.requests, append([]byte(nil), b...))

	var fault Fault
	if len(c.faults) > 0 {
		fault, c.faults = c.faults[0], c.faults[1:]
	}

	resp := c.answer(b)
	if fault != nil {
		resp = fault(resp)
	}
	if resp == nil {
		slog.Debug("sim: no answer", "request", hex.EncodeToString(b))
		return nil
	}
	c.pending = append(c.pending, resp...)
	c.ready = time.Now().Add(c.Latency)
	return nil
}

// answer returns the slave's response frame, or nil when a real device
// would ignore the request.
func (c *Channel) answer(b []byte) []byte {
	if len(b) < rtu.MinSize || b[0] != c.SlaveID {
		return nil
	}
	length := len(b)
	if crc.Checksum(b[:length-2]) != uint16(b[length-1])<<8|uint16(b[length-2]) {
		return nil
	}
	resp := c.slave.Process(modbus.ProtocolDataUnit{FunctionCode: b[1], Data: b[2 : length-2]})
	frame, err := rtu.EncodeRequest(c.SlaveID, resp.FunctionCode, resp.Data)
	if err != nil {
		return nil
	}
	return frame
}

func (c *Channel) Receive(max int, timeout time.Duration) ([]byte, error) {
	start := time.Now()
	deadline := start.Add(timeout)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, &modbus.TransportError{Op: "receive", Err: errClosed}
	}
	ready := c.ready
	available := len(c.pending)
	c.mu.Unlock()

	// Nothing arrives in time: wait out the budget.
	if available == 0 || ready.After(deadline) {
		time.Sleep(time.Until(deadline))
		return []byte{}, nil
	}
	// A short response leaves the reader waiting for the rest.
	if available < max {
		time.Sleep(time.Until(deadline))
	} else {
		time.Sleep(time.Until(ready))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	n := min(max, len(c.pending))
	out := append([]byte(nil), c.pending[:n]...)
	c.pending = c.pending[n:]
	return out, nil
}

func (c *Channel) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = nil
}

func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	return nil
}

// Silence drops the response.
func Silence(frame []byte) []byte {
	return nil
}

// CorruptCRC flips the last checksum byte.
func CorruptCRC(frame []byte) []byte {
	if frame == nil {
		return nil
	}
	frame[len(frame)-1] ^= 0xFF
	return frame
}

// Truncate keeps the first n bytes of the response.
func Truncate(n int) Fault {
	return func(frame []byte) []byte {
		if len(frame) > n {
			return frame[:n]
		}
		return frame
	}
}

// FromSlave answers as another slave id, with a valid checksum.
func FromSlave(id byte) Fault {
	return func(frame []byte) []byte {
		if frame == nil {
			return nil
		}
		frame[0] = id
		return reseal(frame)
	}
}

// Exception replaces the response with an exception carrying code.
func Exception(code byte) Fault {
	return func(frame []byte) []byte {
		if frame == nil {
			return nil
		}
		out, _ := rtu.EncodeRequest(frame[0], frame[1]|modbus.ExceptionFlag, []byte{code})
		return out
	}
}

// Rewrite changes payload byte i of the response (0 is the byte after the
// function code) and recomputes the checksum.
func Rewrite(i int, value byte) Fault {
	return func(frame []byte) []byte {
		if frame == nil || 2+i >= len(frame)-2 {
			return frame
		}
		frame[2+i] = value
		return reseal(frame)
	}
}

func reseal(frame []byte) []byte {
	sum := crc.Checksum(frame[:len(frame)-2])
	frame[len(frame)-2] = byte(sum)
	frame[len(frame)-1] = byte(sum >> 8)
	return frame
}
