// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package isp

import (
	"context"
	"errors"
	"fmt"
)

// Rejection reasons. Every failed step wraps exactly one of these.
var (
	ErrHandshake             = errors.New("handshake failed")
	ErrVersionUnsupported    = errors.New("bootloader version unsupported")
	ErrTransactionMismatch   = errors.New("response mismatch")
	ErrUnlockRejected        = errors.New("unlock rejected")
	ErrSectorPrepareRejected = errors.New("sector prepare rejected")
	ErrEraseRejected         = errors.New("erase rejected")
	ErrRAMWriteRejected      = errors.New("RAM write rejected")
	ErrChecksumRejected      = errors.New("checksum rejected")
	ErrCopyToFlashRejected   = errors.New("copy to flash rejected")
	ErrTransportTimeout      = errors.New("transport timeout")
)

// Caller errors, detected before any transport activity.
var (
	ErrPayloadAlignment = errors.New("payload is not a whole number of 32-bit words")
	ErrPayloadTooLarge  = errors.New("payload would cross more than one unit boundary")
	ErrFlashOverflow    = errors.New("unit would exceed the flash address range")
	ErrSessionFinished  = errors.New("session already finished")
	ErrRecordTooShort   = errors.New("command record too short")
	ErrRecordSize       = errors.New("command record size field invalid")
)

// MismatchError describes a response that did not match the expected shape.
type MismatchError struct {
	Sent     string
	Expected string
	Received []byte
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("sent %q: expected %q, received %q", e.Sent, e.Expected, e.Received)
}

func (e *MismatchError) Unwrap() error {
	return ErrTransactionMismatch
}

// RejectedError reports a failed protocol step. Reason is one of the
// rejection sentinels; Err is the underlying cause (a mismatch or a
// transport failure). errors.Is matches either.
type RejectedError struct {
	Op     string
	Reason error
	Err    error
}

func (e *RejectedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Reason, e.Err)
}

func (e *RejectedError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}

func reject(op string, reason, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &RejectedError{Op: op, Reason: reason, Err: err}
}

// IsRejected returns true if err carries a protocol rejection (as opposed to
// a caller error or a cancelled context).
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}
