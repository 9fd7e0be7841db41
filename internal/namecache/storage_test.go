// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.
package namecache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ffutop/modbus-panel/internal/config"
	"github.com/ffutop/modbus-panel/internal/programs"
)

func sampleSlots() []programs.Slot {
	table := programs.NewTable(30)
	table.Set(0, "Leak test")
	table.Set(4, strings.Repeat("N", programs.SlotCapacity))
	table.Set(29, "Dry run")
	return table.Snapshot()
}

func TestStorage_Persists(t *testing.T) {
	tests := []struct {
		name string
		open func(path string) Storage
	}{
		{"File", func(path string) Storage { return NewFileStorage(path) }},
		{"Mmap", func(path string) Storage { return NewMmapStorage(path, 30) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "names.bin")

			s := tt.open(path)
			slots, err := s.Load()
			if err != nil {
				t.Fatalf("Load of new cache failed: %v", err)
			}
			if slots != nil {
				t.Errorf("new cache returned %d slots", len(slots))
			}
			want := sampleSlots()
			if err := s.Save(want); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			if err := s.Close(); err != nil {
				t.Fatalf("Close failed: %v", err)
			}

			// Reopen, as after a restart
			s = tt.open(path)
			defer s.Close()
			got, err := s.Load()
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if len(got) != len(want) {
				t.Fatalf("got %d slots, want %d", len(got), len(want))
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("slot %d = %+v, want %+v", i, got[i], want[i])
				}
			}
		})
	}
}

func TestStorage_Overwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.bin")
	s := NewFileStorage(path)
	defer s.Close()

	if err := s.Save(sampleSlots()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	short := []programs.Slot{{Name: "Only", FromDevice: true}}
	if err := s.Save(short); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got) != 1 || got[0] != short[0] {
		t.Errorf("got %+v, want %+v", got, short)
	}
	if fi, _ := os.Stat(path); fi.Size() != int64(sizeFor(1)) {
		t.Errorf("file size = %d, want %d", fi.Size(), sizeFor(1))
	}
}

func TestStorage_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.bin")
	if err := os.WriteFile(path, []byte("not a name table"), 0644); err != nil {
		t.Fatal(err)
	}
	s := NewFileStorage(path)
	defer s.Close()

	if _, err := s.Load(); !errors.Is(err, ErrCorrupt) {
		t.Errorf("got %v, want ErrCorrupt", err)
	}
}

func TestMemoryStorage(t *testing.T) {
	s := NewMemoryStorage()
	if slots, _ := s.Load(); slots != nil {
		t.Errorf("new storage returned %v", slots)
	}
	want := sampleSlots()
	s.Save(want)
	want[0].Name = "mutated"

	got, _ := s.Load()
	if got[0].Name != "Leak test" {
		t.Errorf("storage aliases the saved slice: %q", got[0].Name)
	}
}

func TestNew(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		cfg     config.CacheConfig
		want    string
		wantErr bool
	}{
		{config.CacheConfig{Type: "memory"}, "*namecache.MemoryStorage", false},
		{config.CacheConfig{Type: "file", Path: filepath.Join(dir, "a")}, "*namecache.FileStorage", false},
		{config.CacheConfig{Type: "mmap", Path: filepath.Join(dir, "b")}, "*namecache.MmapStorage", false},
		{config.CacheConfig{Type: "sqlite"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.cfg.Type, func(t *testing.T) {
			s, err := New(tt.cfg, 30)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				if got := fmt.Sprintf("%T", s); got != tt.want {
					t.Errorf("New() = %s, want %s", got, tt.want)
				}
				s.Close()
			}
		})
	}
}

// BenchmarkFileStorage_Save benchmarks a full rewrite and fsync.
func BenchmarkFileStorage_Save(b *testing.B) {
	s := NewFileStorage(filepath.Join(b.TempDir(), "bench_file.bin"))
	defer s.Close()
	slots := sampleSlots()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.Save(slots); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkMmapStorage_Save benchmarks encoding into the mapping and msync.
func BenchmarkMmapStorage_Save(b *testing.B) {
	s := NewMmapStorage(filepath.Join(b.TempDir(), "bench_mmap.bin"), 30)
	defer s.Close()
	slots := sampleSlots()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.Save(slots); err != nil {
			b.Fatal(err)
		}
	}
}
