// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package isp

import "testing"

func TestParseVersion(t *testing.T) {
	tests := []struct {
		field string
		want  uint32
	}{
		{"0000000425", 425},
		{"0000000000", 0},
		{"          ", 0},
		{"  26011922", 26011922},
		{"1a2b3c\r\n 4", 1234},
		{"4294967295", 4294967295},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			if got := parseVersion([]byte(tt.field)); got != tt.want {
				t.Errorf("parseVersion(%q) = %d, want %d", tt.field, got, tt.want)
			}
		})
	}
}

func TestVersionResponseLen(t *testing.T) {
	if versionResponseLen != 15 {
		t.Errorf("versionResponseLen = %d, want 15", versionResponseLen)
	}
}

func TestHandshakeState_String(t *testing.T) {
	tests := map[HandshakeState]string{
		StateStart:         "START",
		StateSyn:           "SYN",
		StateAck:           "ACK",
		StateSuccessful:    "SUCCESSFUL",
		HandshakeState(42): "HandshakeState(42)",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
