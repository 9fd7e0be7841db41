// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package namecache

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/ffutop/modbus-panel/internal/programs"
)

// MmapStorage keeps the table in a memory-mapped file. Save writes into the
// mapping and flushes it, leaving write-back to the OS.
//
// The file is sized for the slot count given at creation; a larger file
// written by an earlier configuration is kept as is.
type MmapStorage struct {
	path  string
	slots int
	file  *os.File
	data  mmap.MMap
}

// NewMmapStorage creates a new MmapStorage with room for slots entries.
func NewMmapStorage(path string, slots int) *MmapStorage {
	return &MmapStorage{
		path:  path,
		slots: slots,
	}
}

func (ms *MmapStorage) open() error {
	if ms.data != nil {
		return nil
	}
	// Open file, creating if necessary
	f, err := os.OpenFile(ms.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open mmap file: %w", err)
	}

	// Ensure file size
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	if want := int64(sizeFor(ms.slots)); fi.Size() < want {
		if err := f.Truncate(want); err != nil {
			f.Close()
			return fmt.Errorf("failed to resize mmap file: %w", err)
		}
	}

	data, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return fmt.Errorf("mmap failed: %w", err)
	}
	ms.file = f
	ms.data = data
	return nil
}

// Load decodes the table from the mapping.
func (ms *MmapStorage) Load() ([]programs.Slot, error) {
	if err := ms.open(); err != nil {
		return nil, err
	}
	return decode(ms.data)
}

// Save encodes the table into the mapping and flushes it to disk.
func (ms *MmapStorage) Save(slots []programs.Slot) error {
	if err := ms.open(); err != nil {
		return err
	}
	if err := encodeInto(ms.data, slots); err != nil {
		return err
	}
	return ms.data.Flush()
}

// Close unmaps and closes the file.
func (ms *MmapStorage) Close() error {
	var err error
	if ms.data != nil {
		if e := ms.data.Unmap(); e != nil {
			err = e
		}
		ms.data = nil
	}
	if ms.file != nil {
		if e := ms.file.Close(); e != nil {
			err = e
		}
		ms.file = nil
	}
	return err
}
