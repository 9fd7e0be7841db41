// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package namecache

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ffutop/modbus-panel/internal/programs"
)

// On-disk layout, shared by the file and mmap storages:
//
//	Header: 8 bytes (magic "PNC1", slot count, reserved)
//	Slots:  slot count * 33 bytes (flags, 32 bytes NUL padded name)
const (
	headerSize = 8
	nameSize   = programs.SlotCapacity + 1
	slotSize   = 1 + nameSize
	maxSlots   = 255

	flagFromDevice = 0x01
)

var magic = []byte("PNC1")

// ErrCorrupt is returned when a cache file holds something other than a
// name table.
var ErrCorrupt = errors.New("namecache: unrecognized cache file")

func sizeFor(slots int) int {
	return headerSize + slots*slotSize
}

// encodeInto writes slots into data, which must hold sizeFor(len(slots))
// bytes. Trailing space is zeroed.
func encodeInto(data []byte, slots []programs.Slot) error {
	if len(slots) > maxSlots {
		return fmt.Errorf("namecache: %d slots exceed %d", len(slots), maxSlots)
	}
	if len(data) < sizeFor(len(slots)) {
		return fmt.Errorf("namecache: %d slots need %d bytes, have %d", len(slots), sizeFor(len(slots)), len(data))
	}
	clear(data)
	copy(data, magic)
	data[4] = byte(len(slots))

	for i, slot := range slots {
		rec := data[headerSize+i*slotSize : headerSize+(i+1)*slotSize]
		if slot.FromDevice {
			rec[0] = flagFromDevice
		}
		copy(rec[1:nameSize], slot.Name)
	}
	return nil
}

// decode parses a cache image. An all-zero or empty image is a cache that
// was never written and yields no slots.
func decode(data []byte) ([]programs.Slot, error) {
	if len(data) < headerSize || bytes.Equal(data[:4], make([]byte, 4)) {
		return nil, nil
	}
	if !bytes.Equal(data[:4], magic) {
		return nil, ErrCorrupt
	}
	n := int(data[4])
	if len(data) < sizeFor(n) {
		return nil, fmt.Errorf("%w: %d slots in %d bytes", ErrCorrupt, n, len(data))
	}

	slots := make([]programs.Slot, n)
	for i := range slots {
		rec := data[headerSize+i*slotSize : headerSize+(i+1)*slotSize]
		name := rec[1:]
		if end := bytes.IndexByte(name, 0); end >= 0 {
			name = name[:end]
		}
		slots[i] = programs.Slot{
			Name:       string(name),
			FromDevice: rec[0]&flagFromDevice != 0,
		}
	}
	return slots, nil
}
