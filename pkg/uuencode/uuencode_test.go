// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package uuencode

import (
	"bytes"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := time.Now().UnixNano()
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if s, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			seed = s
		}
	}
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

func TestEncodeGroup_KnownValues(t *testing.T) {
	tests := []struct {
		name string
		in   [3]byte
		want [4]byte
	}{
		{"all zero uses sentinel", [3]byte{0x00, 0x00, 0x00}, [4]byte{0x60, 0x60, 0x60, 0x60}},
		{"all ones", [3]byte{0xFF, 0xFF, 0xFF}, [4]byte{0x5F, 0x5F, 0x5F, 0x5F}},
		{"Cat", [3]byte{'C', 'a', 't'}, [4]byte{'0', 'V', '%', 'T'}},
		{"mixed zero groups", [3]byte{0x04, 0x00, 0x01}, [4]byte{0x21, 0x60, 0x60, 0x21}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeGroup(tt.in)
			if got != tt.want {
				t.Errorf("EncodeGroup(% X) = % X, want % X", tt.in, got, tt.want)
			}
		})
	}
}

func TestEncodeGroup_AllInputs(t *testing.T) {
	// Exhaustive over the first two bytes, sampled over the third
	for a := 0; a < 256; a++ {
		for b := 0; b < 256; b++ {
			for _, c := range []int{0x00, 0x01, 0x3F, 0x40, 0x7F, 0xC0, 0xFF} {
				in := [3]byte{byte(a), byte(b), byte(c)}
				enc := EncodeGroup(in)
				for _, ch := range enc {
					if ch == Offset {
						t.Fatalf("EncodeGroup(% X) produced a space: % X", in, enc)
					}
					if ch < 0x21 || ch > ZeroSentinel {
						t.Fatalf("EncodeGroup(% X) produced non-printable 0x%02X", in, ch)
					}
				}
				if dec := DecodeGroup(enc); dec != in {
					t.Fatalf("DecodeGroup(EncodeGroup(% X)) = % X", in, dec)
				}
			}
		}
	}
}

func TestAppendLine(t *testing.T) {
	tests := []struct {
		name    string
		raw     []byte
		wantLen int
		first   byte
	}{
		{"full line", bytes.Repeat([]byte{0xAB}, 45), 61, 'M'},
		{"tail of a 512 byte half", bytes.Repeat([]byte{0x01}, 17), 25, '1'},
		{"single byte", []byte{0x42}, 5, '!'},
		{"two bytes", []byte{0x42, 0x43}, 5, '"'},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := AppendLine(nil, tt.raw)
			if len(line) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(line), tt.wantLen)
			}
			if line[0] != tt.first {
				t.Errorf("length character = %q, want %q", line[0], tt.first)
			}
			if bytes.IndexByte(line, ' ') >= 0 {
				t.Errorf("line contains a space: %q", line)
			}

			got, err := DecodeLine(line)
			if err != nil {
				t.Fatalf("DecodeLine failed: %v", err)
			}
			if !bytes.Equal(got, tt.raw) {
				t.Errorf("DecodeLine = % X, want % X", got, tt.raw)
			}
		})
	}
}

func TestAppendLine_Appends(t *testing.T) {
	prefix := []byte("prefix")
	line := AppendLine(prefix, []byte{1, 2, 3})
	if !bytes.HasPrefix(line, []byte("prefix")) {
		t.Fatalf("AppendLine dropped the prefix: %q", line)
	}
	if len(line) != len("prefix")+5 {
		t.Errorf("len = %d, want %d", len(line), len("prefix")+5)
	}
}

func TestAppendLine_TooLongPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("AppendLine with 46 bytes should panic")
		}
	}()
	AppendLine(nil, make([]byte, MaxLineBytes+1))
}

func TestDecodeLine_Errors(t *testing.T) {
	tests := []struct {
		name string
		line []byte
	}{
		{"empty", nil},
		{"length character below offset", []byte{0x1F}},
		{"declared count too large", []byte{0x20 + 46}},
		{"truncated", []byte("#0V%")[:3]},
		{"invalid character", []byte{'!', 'a', 'a', 'a', 'a'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeLine(tt.line); err == nil {
				t.Errorf("DecodeLine(%q) should fail", tt.line)
			}
		})
	}
}

func TestEncodedLen(t *testing.T) {
	for n, want := range map[int]int{0: 1, 1: 5, 3: 5, 4: 9, 17: 25, 45: 61} {
		if got := EncodedLen(n); got != want {
			t.Errorf("EncodedLen(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestFuzzLineRoundTrip(t *testing.T) {
	rng := newFuzzRng(t)
	rounds := getFuzzRounds()

	for i := 0; i < rounds; i++ {
		raw := make([]byte, rng.Intn(MaxLineBytes+1))
		rng.Read(raw)

		line := AppendLine(nil, raw)
		if len(line) != EncodedLen(len(raw)) {
			t.Fatalf("round %d: encoded length %d, want %d", i, len(line), EncodedLen(len(raw)))
		}
		got, err := DecodeLine(line)
		if err != nil {
			t.Fatalf("round %d: DecodeLine failed: %v", i, err)
		}
		if !bytes.Equal(got, raw) {
			t.Fatalf("round %d: round trip mismatch\n got: % X\nwant: % X", i, got, raw)
		}
	}
}
