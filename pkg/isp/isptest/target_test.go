// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package isptest

import (
	"bytes"
	"errors"
	"strconv"
	"testing"

	"github.com/Thermoquad/lpcisp/pkg/isp"
	"github.com/Thermoquad/lpcisp/pkg/uuencode"
)

// exchange sends line and reads back exactly n bytes.
func exchange(t *testing.T, tg *Target, line string, n int) string {
	t.Helper()
	if err := tg.SendWithTerminator([]byte(line)); err != nil {
		t.Fatalf("send %q: %v", line, err)
	}
	buf := make([]byte, n)
	if err := tg.ReceiveExact(buf); err != nil {
		t.Fatalf("receive after %q: %v", line, err)
	}
	return string(buf)
}

func synced(t *testing.T) *Target {
	t.Helper()
	tg := NewTarget()
	exchange(t, tg, "?", 12)
	exchange(t, tg, "Synchronized", 15)
	exchange(t, tg, "0", 4)
	return tg
}

func TestTarget_Handshake(t *testing.T) {
	tg := NewTarget()
	if got := exchange(t, tg, "?", 12); got != "Synchronized" {
		t.Errorf("autobaud answer = %q", got)
	}
	if got := exchange(t, tg, "Synchronized", 15); got != "Synchronized\nOK" {
		t.Errorf("sync answer = %q", got)
	}
	if got := exchange(t, tg, "0", 4); got != "0\nOK" {
		t.Errorf("ack answer = %q", got)
	}
	if got := exchange(t, tg, "J", 15); got != "J\n0\r\n"+DefaultVersion {
		t.Errorf("version answer = %q", got)
	}
}

func TestTarget_LockedCommands(t *testing.T) {
	tg := synced(t)
	if got := exchange(t, tg, "P 0 29", 9); got != "P 0 29\n"+CodeCmdLocked {
		t.Errorf("locked prepare = %q", got)
	}
	if got := exchange(t, tg, "U 1234", 9); got != "U 1234\n"+CodeInvalidCode {
		t.Errorf("bad unlock = %q", got)
	}
}

func TestTarget_WriteAndCopy(t *testing.T) {
	tg := synced(t)
	data := bytes.Repeat([]byte{0x12, 0x34, 0x56, 0x78}, 128)

	exchange(t, tg, "U 23130", 9)
	exchange(t, tg, "W 268435968 512", 17)
	for i := 0; i < len(data); i += uuencode.MaxLineBytes {
		line := uuencode.AppendLine(nil, data[i:min(i+uuencode.MaxLineBytes, len(data))])
		if got := exchange(t, tg, string(line), len(line)); got != string(line) {
			t.Fatalf("data echo = %q", got)
		}
	}
	sum := strconv.FormatUint(uint64(isp.Checksum(data)), 10)
	if got := exchange(t, tg, sum, len(sum)+3); got != sum+"\nOK" {
		t.Fatalf("checksum answer = %q", got)
	}
	if !bytes.Equal(tg.RAM[:512], data) {
		t.Fatal("RAM does not hold the written half")
	}

	exchange(t, tg, "P 0 29", 8)
	if got := exchange(t, tg, "C 2048 268435968 1024", 23); got != "C 2048 268435968 1024\n0" {
		t.Fatalf("copy answer = %q", got)
	}
	if !bytes.Equal(tg.Flash[2048:2560], data) {
		t.Error("flash does not hold the copied data")
	}

	// Copy needs a fresh prepare
	if got := exchange(t, tg, "C 0 268435968 1024", 20); got != "C 0 268435968 1024\n"+CodeSectorNotPrepared {
		t.Errorf("unprepared copy = %q", got)
	}
}

func TestTarget_BadChecksum(t *testing.T) {
	tg := synced(t)
	exchange(t, tg, "W 268435968 4", 15)
	line := uuencode.AppendLine(nil, []byte{1, 2, 3, 4})
	exchange(t, tg, string(line), len(line))
	if got := exchange(t, tg, "11", 9); got != "11\nRESEND" {
		t.Errorf("bad checksum answer = %q", got)
	}
}

func TestTarget_Faults(t *testing.T) {
	tg := NewTarget()
	tg.Inject("?", 2, nil)

	exchange(t, tg, "?", 12)
	if err := tg.Send([]byte("?")); err != nil {
		t.Fatal(err)
	}
	if err := tg.ReceiveExact(make([]byte, 1)); !errors.Is(err, isp.ErrTransportTimeout) {
		t.Errorf("silenced line: expected timeout, got %v", err)
	}
	if tg.Count("?") != 2 {
		t.Errorf("Count = %d", tg.Count("?"))
	}
}

func TestIsChecksumLine(t *testing.T) {
	for line, want := range map[string]bool{"65280": true, "": false, "M!\"#": false, "12a": false} {
		if got := IsChecksumLine([]byte(line)); got != want {
			t.Errorf("IsChecksumLine(%q) = %v", line, got)
		}
	}
}
