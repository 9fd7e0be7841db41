// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ffutop/modbus-panel/internal/panel"
	"github.com/ffutop/modbus-panel/internal/programs"
	"github.com/ffutop/modbus-panel/modbus"
)

// scanOutput is printed by the scan command.
type scanOutput struct {
	Status string          `yaml:"status"`
	Report programs.Report `yaml:"report"`
	Names  []string        `yaml:"names"`
}

// namesOutput is printed by the names command.
type namesOutput struct {
	Loaded bool            `yaml:"loaded"`
	Labels []string        `yaml:"labels"`
	Slots  []programs.Slot `yaml:"slots"`
}

// run executes one command against p and writes its result to w.
func run(ctx context.Context, p *panel.Panel, args []string, w io.Writer) error {
	cmd, args := args[0], args[1:]
	slaveID := p.Master().SlaveID()

	switch cmd {
	case "relay":
		if err := wantArgs(cmd, args, 2); err != nil {
			return err
		}
		relay, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("%w: relay %q", modbus.ErrInvalidArgument, args[0])
		}
		on, err := parseOnOff(args[1])
		if err != nil {
			return err
		}
		return report(w, p.ToggleRelay(ctx, relay, on))

	case "start":
		return report(w, p.StartTest(ctx))

	case "test", "run", "stop":
		if err := wantArgs(cmd, args, 1); err != nil {
			return err
		}
		on, err := parseOnOff(args[0])
		if err != nil {
			return err
		}
		signal := map[string]func(context.Context, bool) error{
			"test": p.TestSignal,
			"run":  p.RunSignal,
			"stop": p.StopSignal,
		}[cmd]
		return report(w, signal(ctx, on))

	case "select":
		if err := wantArgs(cmd, args, 1); err != nil {
			return err
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("%w: program %q", modbus.ErrInvalidArgument, args[0])
		}
		return report(w, p.SelectProgram(ctx, n))

	case "scan":
		rep, err := p.UpdateProgramNames(ctx)
		if err != nil {
			return err
		}
		return writeYAML(w, scanOutput{
			Status: rep.Status(),
			Report: rep,
			Names:  p.ProgramLabels(),
		})

	case "names":
		return writeYAML(w, namesOutput{
			Loaded: p.NamesLoaded(),
			Labels: p.ProgramLabels(),
			Slots:  p.ProgramNames(),
		})

	case "read":
		if len(args) < 1 || len(args) > 2 {
			return fmt.Errorf("%w: usage: read <address> [count]", modbus.ErrInvalidArgument)
		}
		address, err := parseUint16(args[0])
		if err != nil {
			return err
		}
		count := uint16(1)
		if len(args) == 2 {
			if count, err = parseUint16(args[1]); err != nil {
				return err
			}
		}
		values, err := p.Master().ReadHoldingRegisters(ctx, slaveID, address, count)
		if err != nil {
			return err
		}
		out := make(map[string]uint16, len(values))
		for i, v := range values {
			out[fmt.Sprintf("0x%04X", int(address)+i)] = v
		}
		return writeYAML(w, out)

	case "write":
		if err := wantArgs(cmd, args, 2); err != nil {
			return err
		}
		address, err := parseUint16(args[0])
		if err != nil {
			return err
		}
		value, err := parseUint16(args[1])
		if err != nil {
			return err
		}
		return report(w, p.Master().WriteSingleRegister(ctx, slaveID, address, value))

	case "coil":
		if err := wantArgs(cmd, args, 2); err != nil {
			return err
		}
		address, err := parseUint16(args[0])
		if err != nil {
			return err
		}
		on, err := parseOnOff(args[1])
		if err != nil {
			return err
		}
		return report(w, p.Master().WriteSingleCoil(ctx, slaveID, address, on))

	default:
		return fmt.Errorf("%w: unknown command %q", modbus.ErrInvalidArgument, cmd)
	}
}

func report(w io.Writer, err error) error {
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, panel.Status(nil))
	return err
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func wantArgs(cmd string, args []string, n int) error {
	if len(args) != n {
		return fmt.Errorf("%w: %s takes %d arguments, got %d", modbus.ErrInvalidArgument, cmd, n, len(args))
	}
	return nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "1", "true":
		return true, nil
	case "off", "0", "false":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q is not on or off", modbus.ErrInvalidArgument, s)
	}
}

func parseUint16(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a 16-bit number", modbus.ErrInvalidArgument, s)
	}
	return uint16(v), nil
}
