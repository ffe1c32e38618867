// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package isp

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Report is the persisted outcome of a reflash session. It tells an operator
// where a failed session stopped, so the next attempt can be planned from a
// safe point.
type Report struct {
	Started  time.Time `cbor:"1,keyasint"`
	Finished time.Time `cbor:"2,keyasint"`

	Image      string `cbor:"3,keyasint,omitempty"`
	ImageSize  int    `cbor:"4,keyasint"`
	Connection string `cbor:"5,keyasint,omitempty"`

	Units    int    `cbor:"6,keyasint"`
	Cursor   uint32 `cbor:"7,keyasint"`
	Staged   int    `cbor:"8,keyasint"`
	Complete bool   `cbor:"9,keyasint"`

	// Reason is the rejection sentinel text, Error the full error chain
	Reason string `cbor:"10,keyasint,omitempty"`
	Error  string `cbor:"11,keyasint,omitempty"`

	Counters Counters `cbor:"12,keyasint"`
}

var reportEncMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{
		Time:    cbor.TimeRFC3339Nano,
		TimeTag: cbor.EncTagRequired,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("isp: cbor enc mode: %v", err))
	}
	return em
}()

// Close fills in the session outcome. s may be nil if the session never
// started.
func (r *Report) Close(s *Session, stats *Statistics, err error) {
	r.Finished = time.Now()
	if s != nil {
		r.Units = s.Units()
		r.Cursor = s.Cursor()
		r.Staged = s.Fill()
		r.Complete = s.Finished()
	}
	if stats != nil {
		r.Counters = stats.Snapshot()
	}
	if err != nil {
		r.Complete = false
		r.Error = err.Error()
		if reason := ErrorReason(err); reason != nil {
			r.Reason = reason.Error()
		}
	}
}

// MarshalReport encodes r as CBOR.
func MarshalReport(r *Report) ([]byte, error) {
	data, err := reportEncMode.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return data, nil
}

// UnmarshalReport decodes a CBOR report.
func UnmarshalReport(data []byte) (*Report, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty report")
	}

	var r Report
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &r, nil
}

func (r *Report) String() string {
	status := "COMPLETE"
	if !r.Complete {
		status = "INCOMPLETE"
	}

	result := fmt.Sprintf("Session %s\n", status)
	result += fmt.Sprintf("  Started:    %s\n", r.Started.Format(time.RFC3339))
	result += fmt.Sprintf("  Duration:   %s\n", r.Finished.Sub(r.Started).Round(time.Millisecond))
	if r.Connection != "" {
		result += fmt.Sprintf("  Connection: %s\n", r.Connection)
	}
	if r.Image != "" {
		result += fmt.Sprintf("  Image:      %s (%d bytes)\n", r.Image, r.ImageSize)
	}
	result += fmt.Sprintf("  Units:      %d (flash cursor 0x%05X)\n", r.Units, r.Cursor)
	if r.Staged > 0 {
		result += fmt.Sprintf("  Staged:     %d bytes not yet flashed\n", r.Staged)
	}
	if r.Reason != "" {
		result += fmt.Sprintf("  Reason:     %s\n", r.Reason)
	}
	if r.Error != "" {
		result += fmt.Sprintf("  Error:      %s\n", r.Error)
	}
	result += r.Counters.String()
	return result
}
