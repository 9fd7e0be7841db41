// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package programs

import (
	"fmt"
	"sync"
)

const (
	// SlotCapacity is the longest name a slot holds, in bytes.
	SlotCapacity = 31
	// labelNameLength leaves room for the " (NN)" suffix of a list label.
	labelNameLength = 23
)

// Slot is one entry of the program name table.
type Slot struct {
	Name       string `yaml:"name"`
	FromDevice bool   `yaml:"from_device"`
}

// Table holds the display names of the controller's programs. Slot i is
// program i+1.
type Table struct {
	mu     sync.RWMutex
	slots  []Slot
	loaded bool
}

// NewTable creates a table of n slots holding default names.
func NewTable(n int) *Table {
	t := &Table{slots: make([]Slot, n)}
	t.Reset()
	return t
}

// DefaultName returns the placeholder name of slot i.
func DefaultName(i int) string {
	return fmt.Sprintf("Program %d", i+1)
}

// Len returns the number of slots.
func (t *Table) Len() int {
	return len(t.slots)
}

// Reset puts every slot back to its default name and clears Loaded.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.slots {
		t.slots[i] = Slot{Name: DefaultName(i)}
	}
	t.loaded = false
}

// Set stores a name read from the device, truncated to SlotCapacity.
func (t *Table) Set(i int, name string) {
	if len(name) > SlotCapacity {
		name = name[:SlotCapacity]
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if i < 0 || i >= len(t.slots) {
		return
	}
	t.slots[i] = Slot{Name: name, FromDevice: true}
}

// Name returns the name of slot i.
func (t *Table) Name(i int) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if i < 0 || i >= len(t.slots) {
		return ""
	}
	return t.slots[i].Name
}

// Label returns the list entry of slot i: the name and program number once
// names have been loaded, otherwise the default name.
func (t *Table) Label(i int) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if i < 0 || i >= len(t.slots) {
		return ""
	}
	if !t.loaded {
		return DefaultName(i)
	}
	name := t.slots[i].Name
	if len(name) > labelNameLength {
		name = name[:labelNameLength]
	}
	return fmt.Sprintf("%s (%d)", name, i+1)
}

// Snapshot returns a copy of all slots.
func (t *Table) Snapshot() []Slot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Slot, len(t.slots))
	copy(out, t.slots)
	return out
}

// Loaded reports whether at least one name came from the device.
func (t *Table) Loaded() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.loaded
}

// SetLoaded marks the table as holding device names.
func (t *Table) SetLoaded(loaded bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.loaded = loaded
}

// Restore replaces the table with previously saved slots. Slots beyond the
// table size are ignored; missing ones keep their default.
func (t *Table) Restore(slots []Slot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	loaded := false
	for i := range t.slots {
		t.slots[i] = Slot{Name: DefaultName(i)}
		if i < len(slots) && slots[i].FromDevice && slots[i].Name != "" {
			t.slots[i] = slots[i]
			loaded = true
		}
	}
	t.loaded = loaded
}
