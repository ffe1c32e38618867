// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package isp

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestStatistics_Record(t *testing.T) {
	s := NewStatistics()

	s.recordTransaction(8, 10, nil)
	s.recordTransaction(3, 5, ErrTransportTimeout)
	s.recordTransaction(3, 5, errors.New("port closed"))
	s.recordMismatch()
	s.recordPayload(256)
	s.recordUnit()
	s.recordFlushFailure()
	s.setVersion(425)

	c := s.Snapshot()
	if c.Transactions != 3 {
		t.Errorf("Transactions = %d, want 3", c.Transactions)
	}
	if c.BytesSent != 14 {
		t.Errorf("BytesSent = %d, want 14", c.BytesSent)
	}
	if c.BytesReceived != 10 {
		t.Errorf("BytesReceived = %d, want 10", c.BytesReceived)
	}
	if c.Timeouts != 1 || c.TransportErrors != 1 || c.Mismatches != 1 {
		t.Errorf("failures = %d/%d/%d, want 1/1/1", c.Timeouts, c.TransportErrors, c.Mismatches)
	}
	if c.PayloadBytes != 256 || c.Units != 1 || c.FlushFailures != 1 {
		t.Errorf("payload = %d, units = %d, flush failures = %d", c.PayloadBytes, c.Units, c.FlushFailures)
	}
	if c.Version != 425 {
		t.Errorf("Version = %d, want 425", c.Version)
	}
}

func TestStatistics_NilIsNoop(t *testing.T) {
	var s *Statistics
	s.recordTransaction(1, 1, nil)
	s.recordUnit()
	if c := s.Snapshot(); c.Transactions != 0 {
		t.Errorf("nil snapshot = %+v", c)
	}
}

func TestStatistics_Reset(t *testing.T) {
	s := NewStatistics()
	s.recordUnit()
	s.Reset()
	if c := s.Snapshot(); c.Units != 0 {
		t.Errorf("Units after Reset = %d", c.Units)
	}
}

func TestStatistics_ConcurrentSnapshot(t *testing.T) {
	s := NewStatistics()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			s.recordTransaction(1, 1, nil)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = s.Snapshot()
		}
	}()
	wg.Wait()

	if c := s.Snapshot(); c.Transactions != 1000 {
		t.Errorf("Transactions = %d, want 1000", c.Transactions)
	}
}

func TestCounters_String(t *testing.T) {
	c := Counters{Version: 425, Transactions: 12, Timeouts: 2}
	out := c.String()
	for _, want := range []string{"Bootloader:", "425", "Transactions:", "Timeouts:"} {
		if !strings.Contains(out, want) {
			t.Errorf("String() missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Mismatches:") {
		t.Errorf("zero mismatches should be omitted:\n%s", out)
	}
}
