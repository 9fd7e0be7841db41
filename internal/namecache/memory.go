// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package namecache

import (
	"sync"

	"github.com/ffutop/modbus-panel/internal/programs"
)

// MemoryStorage keeps the table for the lifetime of the process only.
type MemoryStorage struct {
	mu    sync.Mutex
	slots []programs.Slot
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (ms *MemoryStorage) Load() ([]programs.Slot, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.slots == nil {
		return nil, nil
	}
	return append([]programs.Slot(nil), ms.slots...), nil
}

func (ms *MemoryStorage) Save(slots []programs.Slot) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.slots = append([]programs.Slot(nil), slots...)
	return nil
}

func (ms *MemoryStorage) Close() error {
	return nil
}
