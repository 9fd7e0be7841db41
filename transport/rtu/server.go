// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ffutop/modbus-panel/internal/config"
	"github.com/ffutop/modbus-panel/modbus"
	"github.com/ffutop/modbus-panel/modbus/crc"
	rtupacket "github.com/ffutop/modbus-panel/modbus/rtu"
)

// Handler answers a request addressed to slaveID. Returning false keeps the
// device silent, as a slave does for requests meant for another id.
type Handler func(slaveID byte, req modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, bool)

// Server acts as a slave on the serial bus, answering requests from an
// external master. It lets a panel be exercised against a simulated
// controller over a null-modem cable or pty pair.
type Server struct {
	Config config.SerialConfig

	port io.ReadWriteCloser
}

// NewServer creates a new RTU Server.
func NewServer(cfg config.SerialConfig) *Server {
	return &Server{
		Config: cfg,
	}
}

// Serve opens the port and answers requests until ctx is done.
func (s *Server) Serve(ctx context.Context, handler Handler) error {
	port := s.port
	if port == nil {
		p, err := openDriver(s.Config)
		if err != nil {
			return fmt.Errorf("failed to open serial port %s: %w", s.Config.Device, err)
		}
		port = p
	}
	slog.Info("RTU slave listening", "device", s.Config.Device)

	// Closing the port unblocks a pending read on cancel.
	done := make(chan struct{})
	var once sync.Once
	closePort := func() { once.Do(func() { port.Close() }) }
	go func() {
		select {
		case <-ctx.Done():
			closePort()
		case <-done:
		}
	}()

	err := s.scanLoop(ctx, port, handler)
	close(done)
	closePort()
	return err
}

func (s *Server) scanLoop(ctx context.Context, port io.ReadWriteCloser, handler Handler) error {
	buf := make([]byte, rtupacket.MaxSize)

	for {
		if ctx.Err() != nil {
			return nil
		}

		// Read 1 byte to unblock
		n, err := port.Read(buf[:1])
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if !errors.Is(err, io.EOF) {
				return &modbus.TransportError{Op: "receive", Err: err}
			}
		}
		if n == 0 {
			time.Sleep(time.Millisecond)
			continue
		}

		// Read function code, then the rest of the frame
		current := 1
		current += readUntilIdle(port, buf[current:2])
		if current < 2 {
			continue
		}
		expectedLen, err := calculateRequestLength(buf[1])
		if err != nil {
			slog.Debug("RTU slave: discarding request", "err", err)
			continue
		}
		current += readUntilIdle(port, buf[current:expectedLen])
		if current != expectedLen {
			slog.Debug("RTU slave: discarding partial frame", "frame", hex.EncodeToString(buf[:current]))
			continue
		}

		frame := buf[:expectedLen]
		checksum := uint16(frame[expectedLen-1])<<8 | uint16(frame[expectedLen-2])
		if checksum != crc.Checksum(frame[:expectedLen-2]) {
			slog.Debug("RTU slave: crc mismatch", "frame", hex.EncodeToString(frame))
			continue
		}

		req := modbus.ProtocolDataUnit{
			FunctionCode: frame[1],
			Data:         append([]byte(nil), frame[2:expectedLen-2]...),
		}
		resp, ok := handler(frame[0], req)
		if !ok {
			continue
		}
		raw, err := rtupacket.EncodeRequest(frame[0], resp.FunctionCode, resp.Data)
		if err != nil {
			slog.Error("RTU slave: failed to encode response", "err", err)
			continue
		}
		if _, err := port.Write(raw); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return &modbus.TransportError{Op: "send", Err: err}
		}
	}
}

// readUntilIdle fills b until it is full or the line goes quiet.
func readUntilIdle(r io.Reader, b []byte) int {
	current := 0
	for current < len(b) {
		n, err := r.Read(b[current:])
		current += n
		if err != nil || n == 0 {
			break
		}
	}
	return current
}

// calculateRequestLength returns the expected total length of a request ADU.
func calculateRequestLength(funcCode byte) (int, error) {
	switch funcCode {
	case modbus.FuncCodeReadHoldingRegisters,
		modbus.FuncCodeWriteSingleCoil,
		modbus.FuncCodeWriteSingleRegister:
		// [SlaveID, Func, Addr(2), Val(2), CRC(2)]
		return 8, nil
	default:
		return 0, fmt.Errorf("unsupported function code: 0x%02X", funcCode)
	}
}
