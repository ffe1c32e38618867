// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package isp

// Session phases reported through ProgressCallback
const (
	PhaseHandshake = "handshake"
	PhaseVersion   = "version"
	PhaseErase     = "erase"
	PhaseWriting   = "writing"
	PhaseFinishing = "finishing"
	PhaseComplete  = "complete"
)

// Progress describes where a session is.
type Progress struct {
	Phase string

	// Units is the number of 1024-byte units copied into flash
	Units int

	// Cursor is the flash offset the next unit will be copied to
	Cursor uint32

	// Staged is the number of bytes waiting in the staging buffer
	Staged int
}

// Percentage returns how much of the flash range has been programmed.
func (p Progress) Percentage() float64 {
	return float64(p.Cursor) / float64(FlashEnd) * 100
}

// ProgressCallback is called synchronously; it must return quickly.
type ProgressCallback func(Progress)

// Logger is an optional logging interface. Key/value pairs follow the message.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}
