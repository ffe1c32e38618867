// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package isp

import (
	"encoding/binary"
	"fmt"
)

// Record is a command record delivered by the upstream bus.
type Record struct {
	// Address is the destination address field. The flash cursor decides
	// where data lands; Address is carried along but not used.
	Address uint32

	// Payload aliases the record buffer.
	Payload []byte
}

// ParseRecord splits a raw command record: big-endian address at offset 0,
// big-endian payload size at offset 4, payload from offset 8.
func ParseRecord(buf []byte) (Record, error) {
	if len(buf) < recordDataOffset {
		return Record{}, fmt.Errorf("%w: %d bytes", ErrRecordTooShort, len(buf))
	}

	size := binary.BigEndian.Uint32(buf[recordSizeOffset:])
	if uint64(size) > uint64(len(buf)-recordDataOffset) {
		return Record{}, fmt.Errorf("%w: size %d but only %d payload bytes",
			ErrRecordSize, size, len(buf)-recordDataOffset)
	}

	return Record{
		Address: binary.BigEndian.Uint32(buf[recordAddrOffset:]),
		Payload: buf[recordDataOffset : recordDataOffset+int(size)],
	}, nil
}

// EncodeRecord builds a command record around payload.
func EncodeRecord(address uint32, payload []byte) []byte {
	buf := make([]byte, recordDataOffset+len(payload))
	binary.BigEndian.PutUint32(buf[recordAddrOffset:], address)
	binary.BigEndian.PutUint32(buf[recordSizeOffset:], uint32(len(payload)))
	copy(buf[recordDataOffset:], payload)
	return buf
}

// SwapWords reverses the byte order of every 32-bit word of src into dst.
// The upstream bus swaps each word on the way in; swapping again restores
// target memory order. len(src) must be a multiple of WordSize and dst must
// be at least as long. dst and src may be the same slice.
func SwapWords(dst, src []byte) {
	if len(src)%WordSize != 0 {
		panic(fmt.Sprintf("isp: SwapWords on %d bytes", len(src)))
	}
	for i := 0; i < len(src); i += WordSize {
		binary.LittleEndian.PutUint32(dst[i:], binary.BigEndian.Uint32(src[i:]))
	}
}
