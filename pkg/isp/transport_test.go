// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package isp

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

// fakePort hands out one queued chunk per Read. With nothing queued a Read
// waits out the read timeout and returns 0, nil like a serial port.
type fakePort struct {
	written  bytes.Buffer
	chunks   [][]byte
	timeout  time.Duration
	readErr  error
	writeErr error
	reads    int
}

func (f *fakePort) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	return f.written.Write(p)
}

func (f *fakePort) Read(p []byte) (int, error) {
	f.reads++
	if f.readErr != nil {
		return 0, f.readErr
	}
	if len(f.chunks) == 0 {
		time.Sleep(f.timeout)
		return 0, nil
	}
	n := copy(p, f.chunks[0])
	if n < len(f.chunks[0]) {
		f.chunks[0] = f.chunks[0][n:]
	} else {
		f.chunks = f.chunks[1:]
	}
	return n, nil
}

func (f *fakePort) SetReadTimeout(t time.Duration) error {
	f.timeout = t
	return nil
}

func TestPortTransport_SendWithTerminator(t *testing.T) {
	tests := []struct {
		name       string
		opts       []TransportOption
		wantSuffix string
	}{
		{"default terminator", nil, "\r"},
		{"crlf", []TransportOption{WithTerminator("\r\n")}, "\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := &fakePort{}
			tr := NewPortTransport(port, tt.opts...)

			if err := tr.SendWithTerminator([]byte("U 23130")); err != nil {
				t.Fatalf("SendWithTerminator failed: %v", err)
			}
			want := "U 23130" + tt.wantSuffix
			if got := port.written.String(); got != want {
				t.Errorf("written = %q, want %q", got, want)
			}
		})
	}
}

func TestPortTransport_SendIsVerbatim(t *testing.T) {
	port := &fakePort{}
	tr := NewPortTransport(port)

	if err := tr.Send([]byte("?")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got := port.written.String(); got != "?" {
		t.Errorf("written = %q, want %q", got, "?")
	}
}

func TestPortTransport_ReceiveExactAssemblesChunks(t *testing.T) {
	port := &fakePort{chunks: [][]byte{[]byte("Synch"), []byte("ron"), []byte("ized\n")}}
	tr := NewPortTransport(port, WithReadTimeout(time.Second))

	buf := make([]byte, len("Synchronized"))
	if err := tr.ReceiveExact(buf); err != nil {
		t.Fatalf("ReceiveExact failed: %v", err)
	}
	if string(buf) != "Synchronized" {
		t.Errorf("received %q", buf)
	}
	// The trailing newline stays queued
	if len(port.chunks) != 1 || string(port.chunks[0]) != "\n" {
		t.Errorf("remaining chunks = %q", port.chunks)
	}
}

func TestPortTransport_ReceiveExactTimeout(t *testing.T) {
	port := &fakePort{chunks: [][]byte{[]byte("OK")}}
	tr := NewPortTransport(port, WithReadTimeout(30*time.Millisecond))

	start := time.Now()
	err := tr.ReceiveExact(make([]byte, 4))
	if !errors.Is(err, ErrTransportTimeout) {
		t.Fatalf("expected ErrTransportTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout took %v", elapsed)
	}
}

func TestPortTransport_Errors(t *testing.T) {
	errLine := errors.New("line dropped")

	t.Run("write", func(t *testing.T) {
		tr := NewPortTransport(&fakePort{writeErr: errLine})
		if err := tr.SendWithTerminator([]byte("J")); !errors.Is(err, errLine) {
			t.Errorf("expected wrapped write error, got %v", err)
		}
	})

	t.Run("read", func(t *testing.T) {
		tr := NewPortTransport(&fakePort{readErr: errLine})
		err := tr.ReceiveExact(make([]byte, 1))
		if !errors.Is(err, errLine) {
			t.Errorf("expected wrapped read error, got %v", err)
		}
		if errors.Is(err, ErrTransportTimeout) {
			t.Error("read error must not be reported as a timeout")
		}
	})
}

func TestWithReadTimeout_IgnoresNonPositive(t *testing.T) {
	tr := NewPortTransport(&fakePort{}, WithReadTimeout(0), WithReadTimeout(-time.Second))
	if tr.timeout != DefaultReadTimeout {
		t.Errorf("timeout = %v, want %v", tr.timeout, DefaultReadTimeout)
	}
}
