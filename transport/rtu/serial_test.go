// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.
package rtu

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/ffutop/modbus-panel/internal/config"
	"github.com/ffutop/modbus-panel/modbus"
)

type mockPort struct {
	io.Reader
	io.Writer
}

func (m *mockPort) Close() error { return nil }

type flushingPort struct {
	mockPort
	flushed int
}

func (f *flushingPort) Flush() error {
	f.flushed++
	return nil
}

type brokenPort struct{}

func (brokenPort) Read([]byte) (int, error)  { return 0, errors.New("device unplugged") }
func (brokenPort) Write([]byte) (int, error) { return 0, errors.New("device unplugged") }
func (brokenPort) Close() error              { return nil }

// slowPort blocks every read for delay and returns nothing, like a driver
// with a coarse read timeout on a quiet line.
type slowPort struct {
	mockPort
	delay time.Duration
}

func (s *slowPort) Read([]byte) (int, error) {
	time.Sleep(s.delay)
	return 0, io.EOF
}

func newMockedPort(input []byte) (*Port, *bytes.Buffer) {
	writer := &bytes.Buffer{}
	p := NewPort(config.SerialConfig{Device: "/dev/mock"})
	// Inject mock, connect() skips opening a real device
	p.port = &mockPort{Reader: bytes.NewReader(input), Writer: writer}
	return p, writer
}

func TestPort_Send(t *testing.T) {
	p, writer := newMockedPort(nil)
	req := []byte{0x01, 0x06, 0x4A, 0x33, 0x00, 0x01, 0xAE, 0x1D}

	if err := p.Send(req); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !bytes.Equal(writer.Bytes(), req) {
		t.Errorf("Request mismatch.\nWant: %X\nGot:  %X", req, writer.Bytes())
	}
}

func TestPort_Receive(t *testing.T) {
	resp := []byte{0x01, 0x06, 0x4A, 0x33, 0x00, 0x01, 0xAE, 0x1D, 0x99}

	tests := []struct {
		name    string
		input   []byte
		max     int
		timeout time.Duration
		want    []byte
		minWait time.Duration
	}{
		{"Complete", resp, 8, time.Second, resp[:8], 0},
		{"Partial", resp[:3], 8, 30 * time.Millisecond, resp[:3], 30 * time.Millisecond},
		{"Silent", nil, 8, 20 * time.Millisecond, []byte{}, 20 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newMockedPort(tt.input)

			start := time.Now()
			got, err := p.Receive(tt.max, tt.timeout)
			elapsed := time.Since(start)
			if err != nil {
				t.Fatalf("Receive failed: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Receive() = % X, want % X", got, tt.want)
			}
			if elapsed < tt.minWait {
				t.Errorf("Receive returned after %v, want at least %v", elapsed, tt.minWait)
			}
			if tt.minWait == 0 && elapsed > 500*time.Millisecond {
				t.Errorf("Receive of a complete frame took %v", elapsed)
			}
		})
	}
}

func TestPort_ReceiveSlowPoll(t *testing.T) {
	p := NewPort(config.SerialConfig{Device: "/dev/mock"})
	p.port = &slowPort{delay: 40 * time.Millisecond}

	start := time.Now()
	got, err := p.Receive(8, 50*time.Millisecond)
	elapsed := time.Since(start)
	if err != nil || len(got) != 0 {
		t.Fatalf("Receive() = % X, %v", got, err)
	}
	if elapsed < 50*time.Millisecond {
		t.Errorf("Receive returned after %v, before its timeout", elapsed)
	}
	// at most one poll past the budget
	if elapsed > 50*time.Millisecond+40*time.Millisecond+60*time.Millisecond {
		t.Errorf("Receive returned after %v, more than one poll late", elapsed)
	}
}

func TestPort_TransportErrors(t *testing.T) {
	p := NewPort(config.SerialConfig{Device: "/dev/mock"})
	p.port = brokenPort{}

	var tErr *modbus.TransportError
	if err := p.Send([]byte{0x01}); !errors.As(err, &tErr) || tErr.Op != "send" {
		t.Errorf("Send error = %v, want send TransportError", err)
	}
	if _, err := p.Receive(8, 10*time.Millisecond); !errors.As(err, &tErr) || tErr.Op != "receive" {
		t.Errorf("Receive error = %v, want receive TransportError", err)
	}
}

func TestPort_FlushDrains(t *testing.T) {
	p, _ := newMockedPort([]byte{0xDE, 0xAD, 0xBE, 0xEF})

	p.Flush()

	got, err := p.Receive(4, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("stale bytes survived flush: % X", got)
	}
}

func TestPort_FlushNative(t *testing.T) {
	p := NewPort(config.SerialConfig{Device: "/dev/mock"})
	fp := &flushingPort{mockPort: mockPort{Reader: bytes.NewReader([]byte{0x01}), Writer: io.Discard}}
	p.port = fp

	p.Flush()
	if fp.flushed != 1 {
		t.Errorf("native flush called %d times, want 1", fp.flushed)
	}
}

func TestPort_FlushClosed(t *testing.T) {
	p := NewPort(config.SerialConfig{Device: "/dev/mock"})
	// Must not open the device
	p.Flush()
	if p.port != nil {
		t.Error("Flush opened the port")
	}
}

func TestOpenDriver_Unknown(t *testing.T) {
	if _, err := openDriver(config.SerialConfig{Driver: "usb-magic"}); err == nil {
		t.Error("expected error for unknown driver")
	}
}
