// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package namecache keeps the last program name table across restarts, so
// the program list has names before the first scan completes.
package namecache

import (
	"fmt"

	"github.com/ffutop/modbus-panel/internal/config"
	"github.com/ffutop/modbus-panel/internal/programs"
)

// Storage defines the interface for persisting the program name table.
type Storage interface {
	// Load returns the saved slots, or nil if nothing was saved yet.
	Load() ([]programs.Slot, error)

	// Save replaces the saved slots.
	Save(slots []programs.Slot) error

	// Close releases the underlying resources.
	Close() error
}

// New creates the storage selected by cfg for a table of slots entries.
func New(cfg config.CacheConfig, slots int) (Storage, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStorage(), nil
	case "file":
		return NewFileStorage(cfg.Path), nil
	case "mmap":
		return NewMmapStorage(cfg.Path, slots), nil
	default:
		return nil, fmt.Errorf("namecache: unknown type %q", cfg.Type)
	}
}
