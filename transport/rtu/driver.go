// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"errors"
	"fmt"
	"io"

	gridserial "github.com/grid-x/serial"
	tarmserial "github.com/tarm/serial"

	"github.com/ffutop/modbus-panel/internal/config"
)

const (
	DriverGridX = "grid-x"
	// DriverTarm reads with a timeout of at least 100ms. A read started just
	// before the receive budget runs out cannot be cut short, so Receive on
	// this driver may return up to one such read late when the line is quiet.
	DriverTarm = "tarm"
)

func openDriver(cfg config.SerialConfig) (io.ReadWriteCloser, error) {
	switch cfg.Driver {
	case "", DriverGridX:
		return openGridX(cfg)
	case DriverTarm:
		return openTarm(cfg)
	default:
		return nil, fmt.Errorf("unknown serial driver %q", cfg.Driver)
	}
}

// gridxPort maps the driver's read timeout to an empty read.
type gridxPort struct {
	io.ReadWriteCloser
}

func (p gridxPort) Read(b []byte) (int, error) {
	n, err := p.ReadWriteCloser.Read(b)
	if errors.Is(err, gridserial.ErrTimeout) {
		return n, nil
	}
	return n, err
}

func openGridX(cfg config.SerialConfig) (io.ReadWriteCloser, error) {
	c := &gridserial.Config{
		Address:  cfg.Device,
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		StopBits: cfg.StopBits,
		Parity:   cfg.Parity,
		Timeout:  cfg.PollInterval,
	}
	if cfg.RS485 {
		c.RS485.Enabled = true
		c.RS485.DelayRtsBeforeSend = cfg.DelayRtsBeforeSend
		c.RS485.DelayRtsAfterSend = cfg.DelayRtsAfterSend
		c.RS485.RtsHighDuringSend = cfg.RtsHighDuringSend
		c.RS485.RtsHighAfterSend = cfg.RtsHighAfterSend
		c.RS485.RxDuringTx = cfg.RxDuringTx
	}
	port, err := gridserial.Open(c)
	if err != nil {
		return nil, err
	}
	return gridxPort{port}, nil
}

func openTarm(cfg config.SerialConfig) (io.ReadWriteCloser, error) {
	c := &tarmserial.Config{
		Name:        cfg.Device,
		Baud:        cfg.BaudRate,
		ReadTimeout: cfg.PollInterval,
		Size:        byte(cfg.DataBits),
	}
	switch cfg.Parity {
	case "E":
		c.Parity = tarmserial.ParityEven
	case "O":
		c.Parity = tarmserial.ParityOdd
	default:
		c.Parity = tarmserial.ParityNone
	}
	if cfg.StopBits == 2 {
		c.StopBits = tarmserial.Stop2
	} else {
		c.StopBits = tarmserial.Stop1
	}
	// The returned port flushes natively. Its read timeout has a
	// resolution of 100ms and an empty read surfaces as io.EOF.
	return tarmserial.OpenPort(c)
}
