// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package panel is the synchronous interface the touch screen calls into:
// relay and test controls, program selection and the program name list.
package panel

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ffutop/modbus-panel/internal/config"
	"github.com/ffutop/modbus-panel/internal/local-slave/model"
	"github.com/ffutop/modbus-panel/internal/master"
	"github.com/ffutop/modbus-panel/internal/namecache"
	"github.com/ffutop/modbus-panel/internal/programs"
	"github.com/ffutop/modbus-panel/modbus"
	"github.com/ffutop/modbus-panel/transport"
	"github.com/ffutop/modbus-panel/transport/rtu"
	"github.com/ffutop/modbus-panel/transport/sim"
)

// Panel represents the controller as seen from the operator panel.
type Panel struct {
	cfg     *config.Config
	ch      transport.Channel
	master  *master.Master
	table   *programs.Table
	scanner *programs.Scanner
	cache   namecache.Storage
}

// New opens the channel and name cache selected by cfg.
func New(cfg *config.Config) (*Panel, error) {
	ch, err := NewChannel(cfg)
	if err != nil {
		return nil, err
	}
	cache, err := namecache.New(cfg.Cache, cfg.Scan.Slots)
	if err != nil {
		ch.Close()
		return nil, err
	}
	p, err := NewWithChannel(cfg, ch, cache)
	if err != nil {
		cache.Close()
		ch.Close()
		return nil, err
	}
	return p, nil
}

// NewChannel creates the serial channel for cfg.Serial.Driver. The "sim"
// driver answers from an in-memory controller seeded with cfg.Sim.Programs.
func NewChannel(cfg *config.Config) (transport.Channel, error) {
	switch cfg.Serial.Driver {
	case "sim":
		ch := sim.New(cfg.Bus.SlaveID, SimulatedController(cfg))
		ch.Latency = cfg.Sim.Latency
		slog.Info("panel: using simulated controller", "slaveID", cfg.Bus.SlaveID, "programs", len(cfg.Sim.Programs))
		return ch, nil
	case rtu.DriverGridX, rtu.DriverTarm:
		port := rtu.NewPort(cfg.Serial)
		if err := port.Connect(); err != nil {
			// The port is opened again on first use
			slog.Warn("panel: serial port not available yet", "device", cfg.Serial.Device, "err", err)
		}
		return port, nil
	default:
		return nil, fmt.Errorf("panel: unknown serial driver %q", cfg.Serial.Driver)
	}
}

// SimulatedController returns the memory of a controller whose program
// name table holds cfg.Sim.Programs.
func SimulatedController(cfg *config.Config) *model.DataModel {
	m := model.NewDataModel()
	for i, name := range cfg.Sim.Programs {
		if i >= cfg.Scan.Slots {
			break
		}
		m.SetRecord(cfg.Scan.BaseAddress+uint16(i), name)
	}
	return m
}

// NewWithChannel builds a Panel on an existing channel and cache. Names
// saved in the cache are restored into the program table.
func NewWithChannel(cfg *config.Config, ch transport.Channel, cache namecache.Storage) (*Panel, error) {
	relays, err := master.NewRelayTable(cfg.Relays)
	if err != nil {
		return nil, err
	}
	m := master.New(ch, cfg.Bus, relays)
	table := programs.NewTable(cfg.Scan.Slots)

	if cache == nil {
		cache = namecache.NewMemoryStorage()
	}
	if slots, err := cache.Load(); err != nil {
		slog.Warn("panel: ignoring unreadable name cache", "err", err)
	} else if slots != nil {
		table.Restore(slots)
		slog.Info("panel: restored program names", "loaded", table.Loaded())
	}

	return &Panel{
		cfg:     cfg,
		ch:      ch,
		master:  m,
		table:   table,
		scanner: programs.NewScanner(m, cfg.Bus.SlaveID, table, cfg.Scan),
		cache:   cache,
	}, nil
}

// Master returns the transaction engine, for raw register access.
func (p *Panel) Master() *master.Master {
	return p.master
}

// Scanner returns the program name scanner.
func (p *Panel) Scanner() *programs.Scanner {
	return p.scanner
}

// ToggleRelay switches relay (1..8) on or off.
func (p *Panel) ToggleRelay(ctx context.Context, relay int, on bool) error {
	err := p.master.ToggleRelay(ctx, relay, boolValue(on))
	return p.logged(err, "relay", "relay", relay, "on", on)
}

// StartTest sets the test start coil.
func (p *Panel) StartTest(ctx context.Context) error {
	err := p.master.WriteSingleCoil(ctx, p.cfg.Bus.SlaveID, p.cfg.Registers.TestStartCoil, true)
	return p.logged(err, "start test")
}

// TestSignal drives the test register.
func (p *Panel) TestSignal(ctx context.Context, on bool) error {
	return p.signal(ctx, "test", p.cfg.Registers.Test, on)
}

// RunSignal drives the run register.
func (p *Panel) RunSignal(ctx context.Context, on bool) error {
	return p.signal(ctx, "run", p.cfg.Registers.Run, on)
}

// StopSignal drives the stop register.
func (p *Panel) StopSignal(ctx context.Context, on bool) error {
	return p.signal(ctx, "stop", p.cfg.Registers.Stop, on)
}

func (p *Panel) signal(ctx context.Context, name string, address uint16, on bool) error {
	err := p.master.WriteSingleRegister(ctx, p.cfg.Bus.SlaveID, address, boolValue(on))
	return p.logged(err, name+" signal", "on", on)
}

// SelectProgram makes program n (1-based) the active program. The
// controller numbers programs from zero.
func (p *Panel) SelectProgram(ctx context.Context, n int) error {
	if n < 1 || n > p.table.Len() {
		return fmt.Errorf("%w: program %d out of range 1-%d", modbus.ErrInvalidArgument, n, p.table.Len())
	}
	err := p.master.WriteSingleRegister(ctx, p.cfg.Bus.SlaveID, p.cfg.Registers.ProgramSelect, uint16(n-1))
	return p.logged(err, "select program", "program", n)
}

// UpdateProgramNames rescans the program names. The table is saved to the
// cache when at least one name was read.
func (p *Panel) UpdateProgramNames(ctx context.Context) (programs.Report, error) {
	report, err := p.scanner.Scan(ctx)
	if err != nil {
		return report, err
	}
	if report.Updated > 0 {
		if err := p.cache.Save(p.table.Snapshot()); err != nil {
			slog.Warn("panel: failed to save name cache", "err", err)
		}
	}
	return report, nil
}

// ProgramNames returns a copy of the program table.
func (p *Panel) ProgramNames() []programs.Slot {
	return p.table.Snapshot()
}

// ProgramLabels returns the program list entries in program order.
func (p *Panel) ProgramLabels() []string {
	labels := make([]string, p.table.Len())
	for i := range labels {
		labels[i] = p.table.Label(i)
	}
	return labels
}

// NamesLoaded reports whether the table holds names read from the device.
func (p *Panel) NamesLoaded() bool {
	return p.table.Loaded()
}

// Close releases the cache and the channel.
func (p *Panel) Close() error {
	cacheErr := p.cache.Close()
	if err := p.ch.Close(); err != nil {
		return err
	}
	return cacheErr
}

func (p *Panel) logged(err error, op string, args ...any) error {
	if err != nil {
		slog.Warn("panel: "+op+" failed", append(args, "status", Status(err), "err", err)...)
	}
	return err
}

func boolValue(on bool) uint16 {
	if on {
		return 1
	}
	return 0
}
