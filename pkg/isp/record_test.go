// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package isp

import (
	"bytes"
	"errors"
	"testing"
)

func TestSwapWords(t *testing.T) {
	src := []byte{0x01, 0x02, 0x03, 0x04, 0xAA, 0xBB, 0xCC, 0xDD}
	want := []byte{0x04, 0x03, 0x02, 0x01, 0xDD, 0xCC, 0xBB, 0xAA}

	dst := make([]byte, len(src))
	SwapWords(dst, src)
	if !bytes.Equal(dst, want) {
		t.Errorf("SwapWords = % X, want % X", dst, want)
	}

	// In place
	SwapWords(src, src)
	if !bytes.Equal(src, want) {
		t.Errorf("in-place SwapWords = % X, want % X", src, want)
	}

	// Swapping twice is the identity
	SwapWords(src, src)
	if !bytes.Equal(src, []byte{0x01, 0x02, 0x03, 0x04, 0xAA, 0xBB, 0xCC, 0xDD}) {
		t.Errorf("double swap = % X", src)
	}
}

func TestSwapWords_PanicsOnPartialWord(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	SwapWords(make([]byte, 6), make([]byte, 6))
}

func TestParseRecord(t *testing.T) {
	tests := []struct {
		name    string
		buf     []byte
		wantErr error
		addr    uint32
		payload []byte
	}{
		{
			name:    "valid",
			buf:     []byte{0x00, 0x00, 0x04, 0x00, 0x00, 0x00, 0x00, 0x04, 1, 2, 3, 4},
			addr:    0x400,
			payload: []byte{1, 2, 3, 4},
		},
		{
			name:    "trailing bytes ignored",
			buf:     []byte{0, 0, 0, 0, 0, 0, 0, 4, 1, 2, 3, 4, 9, 9},
			payload: []byte{1, 2, 3, 4},
		},
		{
			name:    "empty payload",
			buf:     []byte{0, 0, 0, 8, 0, 0, 0, 0},
			addr:    8,
			payload: []byte{},
		},
		{
			name:    "short header",
			buf:     []byte{0, 0, 0, 0, 0, 0, 0},
			wantErr: ErrRecordTooShort,
		},
		{
			name:    "size past end",
			buf:     []byte{0, 0, 0, 0, 0, 0, 0, 8, 1, 2, 3, 4},
			wantErr: ErrRecordSize,
		},
		{
			name:    "huge size",
			buf:     []byte{0, 0, 0, 0, 0xFF, 0xFF, 0xFF, 0xFF},
			wantErr: ErrRecordSize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := ParseRecord(tt.buf)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRecord failed: %v", err)
			}
			if rec.Address != tt.addr {
				t.Errorf("Address = %#x, want %#x", rec.Address, tt.addr)
			}
			if !bytes.Equal(rec.Payload, tt.payload) {
				t.Errorf("Payload = % X, want % X", rec.Payload, tt.payload)
			}
		})
	}
}

func TestEncodeRecord_ParsesBack(t *testing.T) {
	payload := bytes.Repeat([]byte{0xDE, 0xAD, 0xBE, 0xEF}, 64)
	buf := EncodeRecord(0x1000, payload)

	if len(buf) != recordDataOffset+len(payload) {
		t.Fatalf("record length = %d", len(buf))
	}
	rec, err := ParseRecord(buf)
	if err != nil {
		t.Fatalf("ParseRecord failed: %v", err)
	}
	if rec.Address != 0x1000 || !bytes.Equal(rec.Payload, payload) {
		t.Errorf("got address %#x, %d payload bytes", rec.Address, len(rec.Payload))
	}
}

func TestChecksum(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint32
	}{
		{"empty", nil, 0},
		{"small", []byte{1, 2, 3}, 6},
		{"filler half", bytes.Repeat([]byte{0xFF}, HalfSize), 0xFF * HalfSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Checksum(tt.data); got != tt.want {
				t.Errorf("Checksum = %d, want %d", got, tt.want)
			}
		})
	}
}
