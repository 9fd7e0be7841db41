// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.
package rtu

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ffutop/modbus-panel/internal/config"
	localslave "github.com/ffutop/modbus-panel/internal/local-slave"
	"github.com/ffutop/modbus-panel/internal/local-slave/model"
	"github.com/ffutop/modbus-panel/modbus"
	rtupacket "github.com/ffutop/modbus-panel/modbus/rtu"
)

func TestCalculateRequestLength(t *testing.T) {
	tests := []struct {
		name     string
		funcCode byte
		want     int
		wantErr  bool
	}{
		{"ReadHoldingRegisters", 0x03, 8, false},
		{"WriteSingleRegister", 0x06, 8, false},
		{"WriteSingleCoil", 0x05, 8, false},
		{"ReadCoils", 0x01, 0, true},
		{"WriteMultipleRegisters", 0x10, 0, true},
		{"UnknownFunction", 0x99, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := calculateRequestLength(tt.funcCode)
			if (err != nil) != tt.wantErr {
				t.Errorf("calculateRequestLength() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("calculateRequestLength() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScanLoop(t *testing.T) {
	m := model.NewDataModel()
	m.SetRecord(0xEA74, "Leak test")
	slave := localslave.NewLocalSlave(m)
	handler := func(slaveID byte, req modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, bool) {
		if slaveID != 0x01 {
			return modbus.ProtocolDataUnit{}, false
		}
		return slave.Process(req), true
	}

	var input []byte
	// Addressed to another slave
	input = append(input, 0x02, 0x06, 0x46, 0xB3, 0x00, 0x01, 0xAC, 0x96)
	// Corrupted checksum
	input = append(input, 0x01, 0x06, 0x46, 0xB3, 0x00, 0x01, 0xAC, 0xA6)
	// Relay 1 on, then read the first program name
	input = append(input, 0x01, 0x06, 0x46, 0xB3, 0x00, 0x01, 0xAC, 0xA5)
	input = append(input, 0x01, 0x03, 0xEA, 0x74, 0x00, 0x02, 0xB0, 0x09)

	writer := &bytes.Buffer{}
	port := &mockPort{Reader: bytes.NewReader(input), Writer: writer}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	s := &Server{}
	if err := s.scanLoop(ctx, port, handler); err != nil {
		t.Fatalf("scanLoop() error = %v", err)
	}

	want := []byte{0x01, 0x06, 0x46, 0xB3, 0x00, 0x01, 0xAC, 0xA5}
	read, _ := rtupacket.EncodeRequest(0x01, 0x03, []byte{0x04, 'L', 'e', 'a', 'k'})
	want = append(want, read...)
	if !bytes.Equal(writer.Bytes(), want) {
		t.Errorf("Response mismatch.\nWant: %X\nGot:  %X", want, writer.Bytes())
	}
	if m.Register(0x46B3) != 1 {
		t.Error("register write not applied")
	}
}

func TestScanLoop_TransportError(t *testing.T) {
	s := &Server{}
	handler := func(byte, modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, bool) {
		return modbus.ProtocolDataUnit{}, false
	}

	err := s.scanLoop(context.Background(), brokenPort{}, handler)
	var te *modbus.TransportError
	if !errors.As(err, &te) {
		t.Errorf("scanLoop() error = %v, want TransportError", err)
	}
}

func TestServe_ClosesOnCancel(t *testing.T) {
	s := NewServer(config.SerialConfig{Device: "/dev/mock"})
	s.port = &mockPort{Reader: bytes.NewReader(nil), Writer: &bytes.Buffer{}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- s.Serve(ctx, nil) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

// closeCounter fails every read and counts Close calls.
type closeCounter struct {
	brokenPort
	closes atomic.Int32
}

func (c *closeCounter) Close() error {
	c.closes.Add(1)
	return nil
}

func TestServe_ClosesOnceOnError(t *testing.T) {
	port := &closeCounter{}
	s := NewServer(config.SerialConfig{Device: "/dev/mock"})
	s.port = port

	handler := func(byte, modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, bool) {
		return modbus.ProtocolDataUnit{}, false
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var te *modbus.TransportError
	if err := s.Serve(ctx, handler); !errors.As(err, &te) {
		t.Fatalf("Serve() error = %v, want TransportError", err)
	}
	cancel()
	time.Sleep(10 * time.Millisecond)
	if n := port.closes.Load(); n != 1 {
		t.Errorf("port closed %d times, want 1", n)
	}
}
