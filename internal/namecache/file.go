// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package namecache

import (
	"fmt"
	"io"
	"os"

	"github.com/ffutop/modbus-panel/internal/programs"
)

// FileStorage keeps the table in a regular file, rewritten and synced on
// every Save.
type FileStorage struct {
	path string
	file *os.File
}

// NewFileStorage creates a new FileStorage.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{
		path: path,
	}
}

func (fs *FileStorage) open() error {
	if fs.file != nil {
		return nil
	}
	// Open file, creating if necessary
	f, err := os.OpenFile(fs.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	fs.file = f
	return nil
}

// Load reads the table from the file.
func (fs *FileStorage) Load() ([]programs.Slot, error) {
	if err := fs.open(); err != nil {
		return nil, err
	}
	if _, err := fs.file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(fs.file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return decode(data)
}

// Save writes the table and syncs it to disk.
func (fs *FileStorage) Save(slots []programs.Slot) error {
	if err := fs.open(); err != nil {
		return err
	}
	data := make([]byte, sizeFor(len(slots)))
	if err := encodeInto(data, slots); err != nil {
		return err
	}
	if _, err := fs.file.WriteAt(data, 0); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := fs.file.Truncate(int64(len(data))); err != nil {
		return fmt.Errorf("failed to resize file: %w", err)
	}
	if err := fs.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync file to disk: %w", err)
	}
	return nil
}

// Close the file.
func (fs *FileStorage) Close() error {
	if fs.file == nil {
		return nil
	}
	err := fs.file.Close()
	fs.file = nil
	return err
}
