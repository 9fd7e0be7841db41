// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ffutop/modbus-panel/internal/config"
	"github.com/ffutop/modbus-panel/modbus"
	rtupacket "github.com/ffutop/modbus-panel/modbus/rtu"
)

const (
	// Default per-read poll timeout of the driver
	serialPollInterval = 10 * time.Millisecond
	// idleSleep bounds busy looping on readers that return immediately
	idleSleep = time.Millisecond
	// flushLimit bounds draining a port that keeps producing data
	flushLimit = 4 * rtupacket.MaxSize
)

type flusher interface {
	Flush() error
}

// Port is the RS485 serial channel. It implements transport.Channel.
//
// The port is opened on first use and stays open until Close.
type Port struct {
	Config config.SerialConfig

	mu sync.Mutex
	// port is the driver-specific serial port. Its Read returns (0, nil)
	// or io.EOF when nothing arrived within the poll interval.
	port io.ReadWriteCloser
}

// NewPort allocates a serial channel for cfg without opening it.
func NewPort(cfg config.SerialConfig) *Port {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = serialPollInterval
	}
	return &Port{Config: cfg}
}

// Connect opens the serial port if it is not open yet.
func (p *Port) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.connect()
}

// connect opens the serial port if it is not connected. Caller must hold the mutex.
func (p *Port) connect() error {
	if p.port != nil {
		return nil
	}
	port, err := openDriver(p.Config)
	if err != nil {
		return &modbus.TransportError{Op: "open", Err: fmt.Errorf("could not open %s: %w", p.Config.Device, err)}
	}
	slog.Info("serial port opened", "device", p.Config.Device, "driver", p.Config.Driver, "baudRate", p.Config.BaudRate, "rs485", p.Config.RS485)
	p.port = port
	return nil
}

func (p *Port) Send(b []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.connect(); err != nil {
		return err
	}
	slog.Debug("send to modbus slave", "request", hex.EncodeToString(b))
	if _, err := p.port.Write(b); err != nil {
		return &modbus.TransportError{Op: "send", Err: err}
	}
	return nil
}

// Receive reads until max bytes arrived or timeout elapsed. A read already
// blocked in the driver is not interrupted, so the return can trail the
// timeout by at most one driver poll.
func (p *Port) Receive(max int, timeout time.Duration) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.connect(); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	buf := make([]byte, max)
	n := 0
	for n < max {
		m, err := p.port.Read(buf[n:])
		n += m
		if err != nil && !errors.Is(err, io.EOF) {
			return buf[:n], &modbus.TransportError{Op: "receive", Err: err}
		}
		if n >= max {
			break
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		if m == 0 {
			time.Sleep(min(idleSleep, remaining))
		}
	}
	slog.Debug("recv from modbus slave", "response", hex.EncodeToString(buf[:n]), "want", max)
	return buf[:n], nil
}

// Flush discards unread input. Drivers that can drop the kernel buffer do
// so; otherwise input is drained until the line goes quiet.
func (p *Port) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.port == nil {
		return
	}
	if f, ok := p.port.(flusher); ok {
		if err := f.Flush(); err != nil {
			slog.Warn("serial flush failed", "device", p.Config.Device, "err", err)
		}
		return
	}

	buf := make([]byte, rtupacket.MaxSize)
	discarded := 0
	for discarded < flushLimit {
		m, err := p.port.Read(buf)
		discarded += m
		if m == 0 || err != nil {
			break
		}
	}
	if discarded > 0 {
		slog.Debug("discarded stale input", "device", p.Config.Device, "bytes", discarded)
	}
}

func (p *Port) Close() (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.port != nil {
		err = p.port.Close()
		p.port = nil
	}
	return
}
