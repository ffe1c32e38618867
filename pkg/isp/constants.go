// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package isp implements the host side of the NXP LPC in-system-programming
// bootloader protocol.
//
// Every exchange with the bootloader is a transaction: one ASCII command line
// is sent, and the response must echo it exactly before a status token is
// checked. A Programmer runs the handshake, version check and sector erase,
// then hands out a Session that accumulates word-swapped payload bytes into
// 1024-byte units and copies each unit into flash through the two 512-byte
// RAM staging regions.
package isp

// Protocol commands and response tokens
const (
	cmdStart     = "?"
	cmdSync      = "Synchronized"
	cmdAck       = "0"
	cmdVersion   = "J"
	cmdUnlock    = "U 23130"
	cmdPrepare   = 'P'
	cmdErase     = 'E'
	cmdWriteRAM  = 'W'
	cmdCopyFlash = 'C'

	StatusZero = "0"  // command accepted
	StatusOK   = "OK" // data accepted

	respSync = "Synchronized"
)

// Target memory layout
const (
	FlashStart = 0
	FlashEnd   = 44032

	FirstSector = 0
	LastSector  = 29

	RAMFirstHalf  = 268435968 // 0x10000200
	RAMSecondHalf = 268436480 // 0x10000400

	UnitSize = 1024
	HalfSize = 512

	FillerByte = 0xFF
)

// Response framing
const (
	separatorLen = 1
	versionGap   = 2  // bytes between the status token and the version digits
	VersionLen   = 10 // width of the numeric version field

	maxCommandLen = 64
	maxRecvLen    = 100
)

// Command record layout
const (
	recordAddrOffset = 0
	recordSizeOffset = 4
	recordDataOffset = 8

	WordSize = 4
)
