// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package isptest provides an in-memory LPC ISP bootloader for exercising
// the isp package without hardware.
//
// Target implements isp.Transport. Every Send or SendWithTerminator call is
// taken as one complete line; the response is queued and handed out by
// ReceiveExact. Output still queued when the next line arrives is dropped,
// as if the host had flushed its input.
package isptest

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/Thermoquad/lpcisp/pkg/isp"
	"github.com/Thermoquad/lpcisp/pkg/uuencode"
)

// LPC ISP return codes used by the simulator
const (
	CodeSuccess             = "0"
	CodeInvalidCommand      = "1"
	CodeSrcAddrError        = "2"
	CodeDstAddrError        = "3"
	CodeCountError          = "6"
	CodeInvalidSector       = "7"
	CodeSectorNotPrepared   = "9"
	CodeParamError          = "19"
	CodeCmdLocked           = "25"
	CodeInvalidCode         = "26"
	DefaultVersion          = "0000000425"
	separator               = '\n'
	versionGap              = "\r\n"
	ramBase                 = isp.RAMFirstHalf
	ramSize                 = isp.UnitSize
	checksumResend          = "RESEND"
	unlockCode              = "23130"
	stateStart, stateSyn    = 0, 1
	stateAck, stateCommands = 2, 3
)

// Fault replaces the target's answer to one line.
type Fault struct {
	Match func(line []byte) bool
	Nth   int // 1-based occurrence of a matching line

	// Response is sent instead of the normal answer. nil means silence, so
	// the host's receive times out.
	Response []byte

	seen int
}

// Target is a simulated bootloader.
type Target struct {
	// Flash is the simulated flash array, erased to 0xFF
	Flash []byte

	// RAM is the 1024-byte staging window starting at isp.RAMFirstHalf
	RAM [ramSize]byte

	// Version is the 10-character numeric field returned by "J"
	Version string

	// Lines records every line received, without terminator
	Lines [][]byte

	state    int
	unlocked bool
	prepared bool

	// RAM write in progress
	writing   bool
	writeAddr uint32
	remaining int
	sum       uint32
	awaitSum  bool

	faults []*Fault
	out    []byte
}

// NewTarget returns a target in reset, waiting for the autobaud character.
func NewTarget() *Target {
	t := &Target{
		Flash:   make([]byte, isp.FlashEnd),
		Version: DefaultVersion,
	}
	for i := range t.Flash {
		t.Flash[i] = 0xFF
	}
	return t
}

// Inject adds a one-shot fault for the n-th line that starts with prefix.
func (t *Target) Inject(prefix string, n int, resp []byte) {
	t.InjectFunc(func(line []byte) bool {
		return bytes.HasPrefix(line, []byte(prefix))
	}, n, resp)
}

// InjectFunc adds a one-shot fault for the n-th line matched by match.
func (t *Target) InjectFunc(match func(line []byte) bool, n int, resp []byte) {
	t.faults = append(t.faults, &Fault{Match: match, Nth: n, Response: resp})
}

// IsChecksumLine reports whether line is a bare decimal number, as sent
// after the data lines of a RAM write.
func IsChecksumLine(line []byte) bool {
	if len(line) == 0 {
		return false
	}
	for _, c := range line {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Count returns the number of received lines starting with prefix.
func (t *Target) Count(prefix string) int {
	n := 0
	for _, l := range t.Lines {
		if bytes.HasPrefix(l, []byte(prefix)) {
			n++
		}
	}
	return n
}

// Reset clears the transcript; flash contents are kept.
func (t *Target) Reset() {
	t.Lines = nil
	t.out = nil
}

func (t *Target) Send(p []byte) error {
	t.receive(p)
	return nil
}

func (t *Target) SendWithTerminator(p []byte) error {
	t.receive(p)
	return nil
}

func (t *Target) ReceiveExact(p []byte) error {
	if len(t.out) < len(p) {
		got := len(t.out)
		t.out = nil
		return fmt.Errorf("%w: simulated target sent %d of %d bytes", isp.ErrTransportTimeout, got, len(p))
	}
	copy(p, t.out)
	t.out = t.out[len(p):]
	return nil
}

func (t *Target) receive(p []byte) {
	line := append([]byte(nil), p...)
	t.Lines = append(t.Lines, line)
	t.out = t.out[:0]

	for _, f := range t.faults {
		if f.seen >= f.Nth || !f.Match(line) {
			continue
		}
		f.seen++
		if f.seen == f.Nth {
			t.writing = false
			t.out = append(t.out, f.Response...)
			return
		}
	}

	if t.writing {
		t.receiveData(line)
		return
	}
	t.receiveCommand(string(line))
}

func (t *Target) reply(line, code string) {
	t.out = append(t.out, line...)
	t.out = append(t.out, separator)
	t.out = append(t.out, code...)
}

func (t *Target) receiveCommand(line string) {
	switch t.state {
	case stateStart:
		if line == "?" {
			t.out = append(t.out, "Synchronized"...)
			t.state = stateSyn
		}
		return
	case stateSyn:
		if line == "Synchronized" {
			t.reply(line, "OK")
			t.state = stateAck
		}
		return
	case stateAck:
		t.reply(line, "OK")
		t.state = stateCommands
		return
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		t.reply(line, CodeInvalidCommand)
		return
	}
	args, err := parseArgs(fields[1:])
	if err != nil {
		t.reply(line, CodeParamError)
		return
	}

	switch fields[0] {
	case "J":
		t.out = append(t.out, line...)
		t.out = append(t.out, separator)
		t.out = append(t.out, CodeSuccess+versionGap...)
		t.out = append(t.out, t.Version...)
	case "U":
		if len(fields) != 2 || fields[1] != unlockCode {
			t.reply(line, CodeInvalidCode)
			return
		}
		t.unlocked = true
		t.reply(line, CodeSuccess)
	case "P":
		t.reply(line, t.prepare(args))
	case "E":
		t.reply(line, t.erase(args))
	case "W":
		t.reply(line, t.startWrite(args))
	case "C":
		t.reply(line, t.copyToFlash(args))
	default:
		t.reply(line, CodeInvalidCommand)
	}
}

func parseArgs(fields []string) ([]uint32, error) {
	args := make([]uint32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return nil, err
		}
		args[i] = uint32(v)
	}
	return args, nil
}

func validSectors(args []uint32) bool {
	return len(args) == 2 && args[0] <= args[1] && args[1] <= isp.LastSector
}

func (t *Target) prepare(args []uint32) string {
	if !t.unlocked {
		return CodeCmdLocked
	}
	if !validSectors(args) {
		return CodeInvalidSector
	}
	t.prepared = true
	return CodeSuccess
}

func (t *Target) erase(args []uint32) string {
	if !t.unlocked {
		return CodeCmdLocked
	}
	if !validSectors(args) {
		return CodeInvalidSector
	}
	if !t.prepared {
		return CodeSectorNotPrepared
	}
	for i := range t.Flash {
		t.Flash[i] = 0xFF
	}
	t.prepared = false
	return CodeSuccess
}

func (t *Target) startWrite(args []uint32) string {
	if len(args) != 2 {
		return CodeParamError
	}
	addr, n := args[0], args[1]
	if addr < ramBase || addr%4 != 0 {
		return CodeDstAddrError
	}
	if n == 0 || n%4 != 0 || addr-ramBase+n > ramSize {
		return CodeCountError
	}
	t.writing = true
	t.awaitSum = false
	t.writeAddr = addr
	t.remaining = int(n)
	t.sum = 0
	return CodeSuccess
}

func (t *Target) receiveData(line []byte) {
	if t.awaitSum {
		t.writing = false
		t.awaitSum = false
		sum, err := strconv.ParseUint(string(line), 10, 32)
		if err != nil || uint32(sum) != t.sum {
			t.reply(string(line), checksumResend)
			return
		}
		t.reply(string(line), "OK")
		return
	}

	// Data lines are echoed exactly
	t.out = append(t.out, line...)
	raw, err := uuencode.DecodeLine(line)
	if err != nil || len(raw) > t.remaining {
		// Poison the checksum so the host sees RESEND
		t.sum = ^t.sum
		t.remaining = 0
		t.awaitSum = true
		return
	}
	off := t.writeAddr - ramBase
	copy(t.RAM[off:], raw)
	t.writeAddr += uint32(len(raw))
	t.remaining -= len(raw)
	t.sum += isp.Checksum(raw)
	if t.remaining == 0 {
		t.awaitSum = true
	}
}

func (t *Target) copyToFlash(args []uint32) string {
	if len(args) != 3 {
		return CodeParamError
	}
	dst, src, n := args[0], args[1], args[2]
	if !t.unlocked {
		return CodeCmdLocked
	}
	if src != ramBase {
		return CodeSrcAddrError
	}
	if n != 256 && n != 512 && n != 1024 {
		return CodeCountError
	}
	if dst%n != 0 || dst+n > isp.FlashEnd {
		return CodeDstAddrError
	}
	if !t.prepared {
		return CodeSectorNotPrepared
	}
	copy(t.Flash[dst:dst+n], t.RAM[:n])
	t.prepared = false
	return CodeSuccess
}
