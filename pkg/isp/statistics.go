// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package isp

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Counters is a point-in-time copy of session statistics.
type Counters struct {
	Version uint32 `cbor:"1,keyasint"`

	Transactions    uint64 `cbor:"2,keyasint"`
	BytesSent       uint64 `cbor:"3,keyasint"`
	BytesReceived   uint64 `cbor:"4,keyasint"`
	Mismatches      uint64 `cbor:"5,keyasint"`
	Timeouts        uint64 `cbor:"6,keyasint"`
	TransportErrors uint64 `cbor:"7,keyasint"`

	PayloadBytes  uint64 `cbor:"8,keyasint"`
	Units         uint64 `cbor:"9,keyasint"`
	FlushFailures uint64 `cbor:"10,keyasint"`

	Elapsed time.Duration `cbor:"11,keyasint"`

	// Rates (calculated)
	TransactionRate float64 `cbor:"-"` // transactions/sec
	PayloadRate     float64 `cbor:"-"` // payload bytes/sec
}

// Statistics tracks transaction counters for one session. It may be read
// from another goroutine (a UI, for example) while the session runs.
type Statistics struct {
	mu             sync.Mutex
	StartTime      time.Time
	LastUpdateTime time.Time
	c              Counters
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

func (s *Statistics) update(f func(c *Counters)) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f(&s.c)
	s.LastUpdateTime = time.Now()
}

func (s *Statistics) recordTransaction(sent, received int, err error) {
	s.update(func(c *Counters) {
		c.Transactions++
		c.BytesSent += uint64(sent)
		switch {
		case err == nil:
			c.BytesReceived += uint64(received)
		case errors.Is(err, ErrTransportTimeout):
			c.Timeouts++
		default:
			c.TransportErrors++
		}
	})
}

func (s *Statistics) recordMismatch() {
	s.update(func(c *Counters) { c.Mismatches++ })
}

func (s *Statistics) recordPayload(n int) {
	s.update(func(c *Counters) { c.PayloadBytes += uint64(n) })
}

func (s *Statistics) recordUnit() {
	s.update(func(c *Counters) { c.Units++ })
}

func (s *Statistics) recordFlushFailure() {
	s.update(func(c *Counters) { c.FlushFailures++ })
}

func (s *Statistics) setVersion(v uint32) {
	s.update(func(c *Counters) { c.Version = v })
}

// Snapshot returns the current counters with rates calculated.
func (s *Statistics) Snapshot() Counters {
	if s == nil {
		return Counters{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.c
	c.Elapsed = time.Since(s.StartTime)
	if secs := c.Elapsed.Seconds(); secs > 0 {
		c.TransactionRate = float64(c.Transactions) / secs
		c.PayloadRate = float64(c.PayloadBytes) / secs
	}
	return c
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	return s.Snapshot().String()
}

func (c Counters) String() string {
	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", c.Elapsed.Seconds())
	if c.Version != 0 {
		result += fmt.Sprintf("Bootloader:      %8d\n", c.Version)
	}
	result += fmt.Sprintf("Transactions:    %8d\n", c.Transactions)
	result += fmt.Sprintf("Bytes Sent:      %8d\n", c.BytesSent)
	result += fmt.Sprintf("Bytes Received:  %8d\n", c.BytesReceived)
	result += fmt.Sprintf("Payload Bytes:   %8d\n", c.PayloadBytes)
	result += fmt.Sprintf("Units Flashed:   %8d\n", c.Units)

	if c.Mismatches > 0 {
		result += fmt.Sprintf("Mismatches:      %8d\n", c.Mismatches)
	}
	if c.Timeouts > 0 {
		result += fmt.Sprintf("Timeouts:        %8d\n", c.Timeouts)
	}
	if c.TransportErrors > 0 {
		result += fmt.Sprintf("Transport Errs:  %8d\n", c.TransportErrors)
	}
	if c.FlushFailures > 0 {
		result += fmt.Sprintf("Unit Retries:    %8d\n", c.FlushFailures)
	}

	result += fmt.Sprintf("Transaction Rate:%8.1f tx/sec\n", c.TransactionRate)
	result += fmt.Sprintf("Payload Rate:    %8.1f bytes/sec\n", c.PayloadRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.StartTime = now
	s.LastUpdateTime = now
	s.c = Counters{}
}
