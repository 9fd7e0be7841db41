// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package crc

import (
	"testing"

	"github.com/sigurn/crc16"
)

func TestCRC(t *testing.T) {
	var crc CRC
	crc.Reset()
	crc.PushBytes([]byte{0x02, 0x07})

	if crc.Value() != 0x1241 {
		t.Fatalf("crc expected %v, actual %v", 0x1241, crc.Value())
	}
}

func TestChecksum_Vectors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint16
	}{
		// slave 1, write single register 0x4A33 = 1; on the wire: AE 1D
		{"WriteSingleRegister", []byte{0x01, 0x06, 0x4A, 0x33, 0x00, 0x01}, 0x1DAE},
		// on the wire: 84 0A
		{"ReadHoldingRegister", []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01}, 0x0A84},
		{"WriteSingleCoil", []byte{0x01, 0x05, 0x00, 0x0A, 0xFF, 0x00}, 0x38AC},
		{"ReadProgramName", []byte{0x01, 0x03, 0xEA, 0x74, 0x00, 0x08}, 0x0E30},
		{"Empty", []byte{}, 0xFFFF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Checksum(tt.data); got != tt.want {
				t.Errorf("Checksum(% X) = 0x%04X, want 0x%04X", tt.data, got, tt.want)
			}
		})
	}
}

func TestChecksum_MatchesReference(t *testing.T) {
	table := crc16.MakeTable(crc16.CRC16_MODBUS)

	inputs := [][]byte{
		{0x01, 0x06, 0x4A, 0x33, 0x00, 0x01},
		{0x01, 0x06, 0x46, 0xB3, 0x00, 0x01},
		{0x11, 0x03, 0x00, 0x6B, 0x00, 0x03},
		[]byte("Program 17"),
	}
	long := make([]byte, 256)
	for i := range long {
		long[i] = byte(i * 7)
	}
	inputs = append(inputs, long)

	for _, in := range inputs {
		want := crc16.Checksum(in, table)
		if got := Checksum(in); got != want {
			t.Errorf("Checksum(% X) = 0x%04X, reference 0x%04X", in, got, want)
		}
	}
}

func TestCRC_Incremental(t *testing.T) {
	data := []byte{0x01, 0x03, 0xEA, 0x74, 0x00, 0x08}

	var crc CRC
	crc.Reset().PushBytes(data[:2]).PushBytes(data[2:])
	if crc.Value() != Checksum(data) {
		t.Fatalf("incremental crc 0x%04X differs from one-shot 0x%04X", crc.Value(), Checksum(data))
	}
}
