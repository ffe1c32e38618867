// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package uuencode implements the UUencode variant used by the NXP LPC ISP
// bootloader to carry binary data over its line-oriented serial protocol.
//
// Three raw bytes become four printable characters. Each 6-bit group is offset
// by 0x20, and a group of zero is sent as 0x60 instead of a space so that a
// literal space never appears inside a line.
package uuencode

import "fmt"

// Encoding constants
const (
	Offset       = 0x20 // added to every 6-bit group
	ZeroSentinel = 0x60 // replaces Offset in the encoded output
	MaxLineBytes = 45   // raw bytes per encoded line
)

// EncodeGroup packs three raw bytes into four encoded characters.
func EncodeGroup(src [3]byte) [4]byte {
	dst := [4]byte{
		src[0] >> 2,
		(src[0]&0x03)<<4 | src[1]>>4,
		(src[1]&0x0F)<<2 | src[2]>>6,
		src[2] & 0x3F,
	}
	for i := range dst {
		dst[i] += Offset
		if dst[i] == Offset {
			dst[i] = ZeroSentinel
		}
	}
	return dst
}

// DecodeGroup reverses EncodeGroup.
func DecodeGroup(src [4]byte) [3]byte {
	var g [4]byte
	for i, c := range src {
		if c == ZeroSentinel {
			c = Offset
		}
		g[i] = (c - Offset) & 0x3F
	}
	return [3]byte{
		g[0]<<2 | g[1]>>4,
		g[1]<<4 | g[2]>>2,
		g[2]<<6 | g[3],
	}
}

// EncodedLen returns the length of an encoded line carrying n raw bytes,
// including the length character.
func EncodedLen(n int) int {
	return 1 + (n+2)/3*4
}

// AppendLine appends one encoded line for raw to dst and returns the extended
// slice. raw must hold at most MaxLineBytes bytes. A trailing partial group is
// zero padded; the receiver drops the padding using the length character.
func AppendLine(dst, raw []byte) []byte {
	if len(raw) > MaxLineBytes {
		panic(fmt.Sprintf("uuencode: line of %d bytes exceeds %d", len(raw), MaxLineBytes))
	}

	dst = append(dst, byte(len(raw))+Offset)
	for i := 0; i < len(raw); i += 3 {
		var group [3]byte
		copy(group[:], raw[i:])
		enc := EncodeGroup(group)
		dst = append(dst, enc[:]...)
	}
	return dst
}

// DecodeLine decodes one encoded line (without terminator) and returns the raw
// bytes it declares.
func DecodeLine(line []byte) ([]byte, error) {
	if len(line) == 0 {
		return nil, fmt.Errorf("empty line")
	}

	n := int(line[0]) - Offset
	if n < 0 || n > MaxLineBytes {
		return nil, fmt.Errorf("invalid length character 0x%02X", line[0])
	}
	if len(line) != EncodedLen(n) {
		return nil, fmt.Errorf("line length %d does not match %d declared bytes (want %d)",
			len(line), n, EncodedLen(n))
	}

	raw := make([]byte, 0, (n+2)/3*3)
	for i := 1; i < len(line); i += 4 {
		var group [4]byte
		copy(group[:], line[i:i+4])
		for _, c := range group {
			if c < Offset || c > ZeroSentinel {
				return nil, fmt.Errorf("invalid character 0x%02X", c)
			}
		}
		dec := DecodeGroup(group)
		raw = append(raw, dec[:]...)
	}
	return raw[:n], nil
}
