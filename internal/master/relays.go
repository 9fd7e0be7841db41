// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package master

import (
	"fmt"

	"github.com/ffutop/modbus-panel/internal/config"
	"github.com/ffutop/modbus-panel/modbus"
)

// Control addresses of the test equipment controller.
const (
	RegTest          = config.DefaultTestRegister
	RegRun           = config.DefaultRunRegister
	RegStop          = config.DefaultStopRegister
	RegProgramSelect = config.DefaultProgramSelect
	CoilTestStart    = config.DefaultTestStartCoil
)

// RelayTable maps logical relay numbers 1..8 to holding register addresses.
type RelayTable [config.RelayCount]uint16

// DefaultRelayTable returns the RELAY1..RELAY8 block of the controller.
func DefaultRelayTable() RelayTable {
	return RelayTable(config.DefaultRelays)
}

// NewRelayTable builds a table from exactly eight addresses, relay 1 first.
func NewRelayTable(addrs []uint16) (RelayTable, error) {
	var t RelayTable
	if len(addrs) != len(t) {
		return t, fmt.Errorf("%w: relay table needs %d addresses, got %d", modbus.ErrInvalidArgument, len(t), len(addrs))
	}
	copy(t[:], addrs)
	return t, nil
}

// Address returns the register that drives relay.
func (t RelayTable) Address(relay int) (uint16, error) {
	if relay < 1 || relay > len(t) {
		return 0, fmt.Errorf("%w: relay %d out of range 1-%d", modbus.ErrInvalidArgument, relay, len(t))
	}
	return t[relay-1], nil
}
