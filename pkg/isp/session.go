// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package isp

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/Thermoquad/lpcisp/pkg/uuencode"
)

// Session streams payload into flash, one 1024-byte unit at a time.
//
// A Session lives for exactly one reflash and is not safe for concurrent use.
// Between calls the staging buffer holds fewer than UnitSize bytes; bytes
// past the fill level are FillerByte.
type Session struct {
	prog *Programmer

	staging [UnitSize]byte
	fill    int
	cursor  uint32
	units   int

	finished bool

	// scratch for the word-swapped payload of one Write
	swapped [2 * UnitSize]byte
}

func newSession(p *Programmer) *Session {
	s := &Session{prog: p}
	fillFiller(s.staging[:])
	return s
}

// NewSession returns a session without running Begin, for callers that
// drive the handshake and sector preparation themselves.
func (p *Programmer) NewSession() *Session {
	return newSession(p)
}

// Fill returns the number of bytes waiting in the staging buffer.
func (s *Session) Fill() int { return s.fill }

// Cursor returns the flash offset the next unit will be copied to.
func (s *Session) Cursor() uint32 { return s.cursor }

// Units returns the number of units copied into flash.
func (s *Session) Units() int { return s.units }

// Finished reports whether Finish has completed.
func (s *Session) Finished() bool { return s.finished }

// WriteRecord parses a raw command record and writes its payload.
func (s *Session) WriteRecord(ctx context.Context, record []byte) error {
	rec, err := ParseRecord(record)
	if err != nil {
		return err
	}
	return s.Write(ctx, rec.Payload)
}

// Write stages payload, which arrives word-swapped from the upstream bus.
// While the staging buffer stays below one unit nothing is sent. Once it
// reaches a full unit the unit is flushed and the rest of payload is carried
// into the emptied buffer.
//
// At most one unit boundary may be crossed per call, so Fill()+len(payload)
// must stay below 2*UnitSize. If the flush is rejected the session is left
// exactly as it was before the call, and the same call may be repeated.
func (s *Session) Write(ctx context.Context, payload []byte) error {
	if s.finished {
		return ErrSessionFinished
	}
	if len(payload)%WordSize != 0 {
		return fmt.Errorf("%w: %d bytes", ErrPayloadAlignment, len(payload))
	}
	if s.fill+len(payload) >= 2*UnitSize {
		return fmt.Errorf("%w: %d bytes staged, %d more", ErrPayloadTooLarge, s.fill, len(payload))
	}

	swapped := s.swapped[:len(payload)]
	SwapWords(swapped, payload)
	s.prog.config.Statistics.recordPayload(len(payload))

	if s.fill+len(swapped) < UnitSize {
		copy(s.staging[s.fill:], swapped)
		s.fill += len(swapped)
		return nil
	}

	consumed := UnitSize - s.fill
	copy(s.staging[s.fill:], swapped[:consumed])
	if err := s.flush(ctx, swapped[consumed:]); err != nil {
		fillFiller(s.staging[s.fill:])
		return err
	}
	return nil
}

// Finish flushes a partially filled last unit, filler bytes included, and
// ends the session. With nothing staged it does no transport activity.
func (s *Session) Finish(ctx context.Context) error {
	if s.finished {
		return ErrSessionFinished
	}

	s.prog.reportProgress(s.progress(PhaseFinishing))
	if s.fill != 0 {
		if err := s.flush(ctx, nil); err != nil {
			return err
		}
	}
	s.finished = true

	s.prog.logInfo("session finished", "units", s.units, "cursor", s.cursor)
	s.prog.reportProgress(s.progress(PhaseComplete))
	return nil
}

// flush runs flushUnit, repeating the whole unit on rejection up to the
// configured number of retries.
func (s *Session) flush(ctx context.Context, remainder []byte) error {
	var err error
	for attempt := 0; attempt <= s.prog.config.Retries; attempt++ {
		if attempt > 0 {
			s.prog.logInfo("retrying unit", "cursor", s.cursor, "attempt", attempt)
		}
		err = s.flushUnit(ctx, remainder)
		if err == nil || !IsRejected(err) {
			break
		}
		s.prog.config.Statistics.recordFlushFailure()
	}
	return err
}

// flushUnit writes the staging buffer to the two RAM halves, copies the unit
// to flash at the cursor and, on success, restarts the buffer with
// remainder. Nothing in the session changes on failure.
func (s *Session) flushUnit(ctx context.Context, remainder []byte) error {
	if s.cursor+UnitSize > FlashEnd {
		return fmt.Errorf("%w: cursor %d", ErrFlashOverflow, s.cursor)
	}

	p := s.prog
	if err := p.writeHalf(ctx, RAMFirstHalf, s.staging[:HalfSize]); err != nil {
		return err
	}
	if err := p.writeHalf(ctx, RAMSecondHalf, s.staging[HalfSize:]); err != nil {
		return err
	}

	if err := p.unlock(ctx); err != nil {
		return err
	}
	if err := p.prepare(ctx); err != nil {
		return err
	}
	cmd := p.format(cmdCopyFlash, s.cursor, RAMFirstHalf, UnitSize)
	if err := p.command(ctx, cmd, StatusZero); err != nil {
		return reject("copy to flash", ErrCopyToFlashRejected, err)
	}

	p.logDebug("unit copied", "cursor", s.cursor)
	s.cursor += UnitSize
	s.units++
	fillFiller(s.staging[:])
	s.fill = copy(s.staging[:], remainder)

	p.config.Statistics.recordUnit()
	p.reportProgress(s.progress(PhaseWriting))
	return nil
}

func (s *Session) progress(phase string) Progress {
	return Progress{
		Phase:  phase,
		Units:  s.units,
		Cursor: s.cursor,
		Staged: s.fill,
	}
}

// writeHalf loads one 512-byte half into target RAM at addr and has the
// bootloader confirm its checksum.
func (p *Programmer) writeHalf(ctx context.Context, addr uint32, data []byte) error {
	if err := p.unlock(ctx); err != nil {
		return err
	}

	cmd := p.format(cmdWriteRAM, addr, uint32(len(data)))
	if err := p.command(ctx, cmd, StatusZero); err != nil {
		return reject("write RAM", ErrRAMWriteRejected, err)
	}

	for i := 0; i < len(data); i += uuencode.MaxLineBytes {
		end := min(i+uuencode.MaxLineBytes, len(data))
		line := uuencode.AppendLine(p.line[:0], data[i:end])
		if err := p.Execute(ctx, Transaction{Command: line, Terminate: true}); err != nil {
			return reject("send data line", ErrRAMWriteRejected, err)
		}
	}

	cmd = strconv.AppendUint(p.line[:0], uint64(Checksum(data)), 10)
	if err := p.command(ctx, cmd, StatusOK); err != nil {
		return reject("checksum", ErrChecksumRejected, err)
	}
	return nil
}

// Checksum is the plain sum of data with 32-bit wraparound.
func Checksum(data []byte) uint32 {
	var sum uint32
	for _, b := range data {
		sum += uint32(b)
	}
	return sum
}

func fillFiller(b []byte) {
	for i := range b {
		b[i] = FillerByte
	}
}

// ErrorReason returns the rejection sentinel carried by err, or nil.
func ErrorReason(err error) error {
	var re *RejectedError
	if errors.As(err, &re) {
		return re.Reason
	}
	return nil
}
