// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package isp

import (
	"fmt"
	"io"
	"time"
)

// Transport is the byte link to the bootloader.
type Transport interface {
	// Send writes p exactly as given.
	Send(p []byte) error

	// SendWithTerminator writes p followed by the line terminator.
	SendWithTerminator(p []byte) error

	// ReceiveExact blocks until len(p) bytes have arrived, or fails.
	// A receive that runs out of time returns an error wrapping
	// ErrTransportTimeout.
	ReceiveExact(p []byte) error
}

// Port is a byte stream whose reads can be bounded. A Read that times out
// returns 0 bytes and a nil error, as go.bug.st/serial does.
type Port interface {
	io.ReadWriter
	SetReadTimeout(t time.Duration) error
}

// Default transport settings
const (
	DefaultReadTimeout = 5 * time.Second
	DefaultTerminator  = "\r"
)

// PortTransport implements Transport over a Port.
type PortTransport struct {
	port       Port
	timeout    time.Duration
	terminator []byte
	buf        []byte
}

// TransportOption configures a PortTransport.
type TransportOption func(*PortTransport)

// WithReadTimeout bounds every ReceiveExact call.
func WithReadTimeout(timeout time.Duration) TransportOption {
	return func(t *PortTransport) {
		if timeout > 0 {
			t.timeout = timeout
		}
	}
}

// WithTerminator sets the line terminator used by SendWithTerminator.
func WithTerminator(terminator string) TransportOption {
	return func(t *PortTransport) {
		t.terminator = []byte(terminator)
	}
}

// NewPortTransport wraps port.
func NewPortTransport(port Port, opts ...TransportOption) *PortTransport {
	t := &PortTransport{
		port:       port,
		timeout:    DefaultReadTimeout,
		terminator: []byte(DefaultTerminator),
		buf:        make([]byte, 0, maxCommandLen+4),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *PortTransport) Send(p []byte) error {
	return t.write(p)
}

func (t *PortTransport) SendWithTerminator(p []byte) error {
	t.buf = append(t.buf[:0], p...)
	t.buf = append(t.buf, t.terminator...)
	return t.write(t.buf)
}

func (t *PortTransport) write(p []byte) error {
	n, err := t.port.Write(p)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if n != len(p) {
		return fmt.Errorf("short write: %d of %d bytes", n, len(p))
	}
	return nil
}

func (t *PortTransport) ReceiveExact(p []byte) error {
	deadline := time.Now().Add(t.timeout)
	got := 0
	for got < len(p) {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("%w: received %d of %d bytes in %v", ErrTransportTimeout, got, len(p), t.timeout)
		}
		if err := t.port.SetReadTimeout(remaining); err != nil {
			return fmt.Errorf("set read timeout: %w", err)
		}
		n, err := t.port.Read(p[got:])
		got += n
		if err != nil && got < len(p) {
			return fmt.Errorf("read: %w", err)
		}
	}
	return nil
}
