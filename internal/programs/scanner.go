// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package programs enumerates the program names stored on the controller.
package programs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ffutop/modbus-panel/internal/config"
)

var (
	// ErrScanInProgress is returned when a scan is triggered while another
	// one is still running.
	ErrScanInProgress = errors.New("programs: scan already in progress")

	errEmptyName = errors.New("programs: empty name")
)

// RegisterReader reads holding registers from a slave.
type RegisterReader interface {
	ReadHoldingRegisters(ctx context.Context, slaveID byte, address, count uint16) ([]uint16, error)
}

// Reason tells why a scan stopped.
type Reason int

const (
	Completed Reason = iota
	Deadline
	TooManyFailures
	Canceled
)

func (r Reason) String() string {
	switch r {
	case Completed:
		return "completed"
	case Deadline:
		return "deadline"
	case TooManyFailures:
		return "too many failures"
	case Canceled:
		return "canceled"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// MarshalText renders the reason in YAML and JSON output.
func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Report summarizes one scan.
type Report struct {
	Updated   int           `yaml:"updated"`
	Attempted int           `yaml:"attempted"`
	Slots     int           `yaml:"slots"`
	Reason    Reason        `yaml:"reason"`
	Elapsed   time.Duration `yaml:"elapsed"`
}

// Status is the one-line result shown to the operator.
func (r Report) Status() string {
	switch {
	case r.Reason == Deadline:
		return "Program scan timed out"
	case r.Updated > 0:
		return fmt.Sprintf("Updated %d/%d programs", r.Updated, r.Slots)
	default:
		return "No program names available"
	}
}

// Scanner reads every program name slot into a Table, one slot per
// transaction.
type Scanner struct {
	reader  RegisterReader
	slaveID byte
	table   *Table
	cfg     config.ScanConfig

	// OnProgress, when set, is called every fifth slot with the share of
	// slots already visited, in percent.
	OnProgress func(percent int)

	running atomic.Bool
}

// NewScanner creates a Scanner filling table from slaveID.
func NewScanner(reader RegisterReader, slaveID byte, table *Table, cfg config.ScanConfig) *Scanner {
	return &Scanner{
		reader:  reader,
		slaveID: slaveID,
		table:   table,
		cfg:     cfg,
	}
}

// Table returns the table the scanner fills.
func (s *Scanner) Table() *Table {
	return s.table
}

// Running reports whether a scan is in progress.
func (s *Scanner) Running() bool {
	return s.running.Load()
}

// Scan resets the table to default names and reads each slot in turn. It
// stops early once the deadline has passed, after MaxFailures consecutive
// failed slots, or when ctx is done. Slots that were not read keep their
// default name.
func (s *Scanner) Scan(ctx context.Context) (Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		return Report{}, ErrScanInProgress
	}
	defer s.running.Store(false)

	slots := min(s.cfg.Slots, s.table.Len())
	report := Report{Slots: slots, Reason: Completed}
	s.table.Reset()

	start := time.Now()
	failures := 0
	slog.Info("programs: scan started", "slaveID", s.slaveID, "slots", slots)

	for i := 0; i < slots; i++ {
		if ctx.Err() != nil {
			report.Reason = Canceled
			break
		}
		if time.Since(start) > s.cfg.Deadline {
			report.Reason = Deadline
			break
		}
		if failures >= s.cfg.MaxFailures {
			report.Reason = TooManyFailures
			break
		}
		if s.OnProgress != nil && i%5 == 0 {
			s.OnProgress(i * 100 / slots)
		}

		report.Attempted++
		name, err := s.readName(ctx, i)
		if err != nil {
			failures++
			slog.Debug("programs: slot read failed", "slot", i+1, "failures", failures, "err", err)
		} else {
			failures = 0
			report.Updated++
			s.table.Set(i, name)
			slog.Debug("programs: slot read", "slot", i+1, "name", name)
		}

		if i < slots-1 && !sleep(ctx, s.cfg.Delay) {
			report.Reason = Canceled
			break
		}
	}

	s.table.SetLoaded(report.Updated > 0)
	report.Elapsed = time.Since(start)
	slog.Info("programs: scan finished", "updated", report.Updated, "attempted", report.Attempted,
		"reason", report.Reason, "elapsed", report.Elapsed)
	return report, nil
}

func (s *Scanner) readName(ctx context.Context, slot int) (string, error) {
	address := s.cfg.BaseAddress + uint16(slot)
	values, err := s.reader.ReadHoldingRegisters(ctx, s.slaveID, address, s.cfg.RegistersPerSlot)
	if err != nil {
		return "", err
	}
	name := DecodeName(values)
	if name == "" {
		return "", errEmptyName
	}
	return name, nil
}

// DecodeName turns registers into text, high byte first. It stops at the
// first NUL or control byte and keeps at most SlotCapacity bytes. Bytes
// >= 0x80 are kept as is.
func DecodeName(values []uint16) string {
	buf := make([]byte, 0, SlotCapacity)
	for _, v := range values {
		for _, b := range [2]byte{byte(v >> 8), byte(v)} {
			if b < 32 || len(buf) == SlotCapacity {
				return string(buf)
			}
			buf = append(buf, b)
		}
	}
	return string(buf)
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
