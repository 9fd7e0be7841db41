// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import "fmt"

// Validate checks configuration correctness after Fixup.
func Validate(c *Config) error {
	switch c.Serial.Driver {
	case "grid-x", "tarm", "sim":
	default:
		return fmt.Errorf("serial: unknown driver %q", c.Serial.Driver)
	}
	switch c.Serial.Parity {
	case "N", "E", "O":
	default:
		return fmt.Errorf("serial: invalid parity %q", c.Serial.Parity)
	}
	if c.Serial.Driver != "sim" && c.Serial.Device == "" {
		return fmt.Errorf("serial: device required")
	}

	if c.Bus.SlaveID > 247 {
		return fmt.Errorf("bus: slave id %d out of range 1-247", c.Bus.SlaveID)
	}

	if len(c.Relays) != RelayCount {
		return fmt.Errorf("relays: want %d addresses, got %d", RelayCount, len(c.Relays))
	}
	seen := make(map[uint16]int, len(c.Relays))
	for i, addr := range c.Relays {
		if prev, ok := seen[addr]; ok {
			return fmt.Errorf("relays: relay %d and relay %d share register %d", prev+1, i+1, addr)
		}
		seen[addr] = i
	}

	if c.Scan.Slots < 1 {
		return fmt.Errorf("scan: slots must be > 0")
	}
	if c.Scan.RegistersPerSlot > 125 {
		return fmt.Errorf("scan: registers_per_slot %d exceeds 125", c.Scan.RegistersPerSlot)
	}
	if int(c.Scan.BaseAddress)+c.Scan.Slots-1 > 0xFFFF {
		return fmt.Errorf("scan: %d slots from 0x%04X overflow the address space", c.Scan.Slots, c.Scan.BaseAddress)
	}
	if c.Scan.MaxFailures < 1 {
		return fmt.Errorf("scan: max_failures must be > 0")
	}

	switch c.Cache.Type {
	case "memory":
	case "file", "mmap":
		if c.Cache.Path == "" {
			return fmt.Errorf("cache: path required for type %q", c.Cache.Type)
		}
	default:
		return fmt.Errorf("cache: unknown type %q", c.Cache.Type)
	}
	return nil
}
