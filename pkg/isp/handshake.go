// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package isp

import (
	"context"
	"fmt"
)

// HandshakeState is the synchronization progress with the bootloader. It
// only ever moves forward.
type HandshakeState int

const (
	StateStart HandshakeState = iota
	StateSyn
	StateAck
	StateSuccessful
)

func (s HandshakeState) String() string {
	switch s {
	case StateStart:
		return "START"
	case StateSyn:
		return "SYN"
	case StateAck:
		return "ACK"
	case StateSuccessful:
		return "SUCCESSFUL"
	default:
		return fmt.Sprintf("HandshakeState(%d)", int(s))
	}
}

// Handshake synchronizes with the bootloader. It returns the last state
// reached; on failure the error wraps ErrHandshake. Handshake makes a single
// pass; repeating it is up to the caller (see WithRetries).
func (p *Programmer) Handshake(ctx context.Context) (HandshakeState, error) {
	state := StateStart
	for state != StateSuccessful {
		next, err := p.handshakeStep(ctx, state)
		if err != nil {
			p.logError("handshake failed", "state", state.String(), "error", err)
			return state, reject("handshake "+state.String(), ErrHandshake, err)
		}
		p.logDebug("handshake", "from", state.String(), "to", next.String())
		state = next
	}
	return state, nil
}

func (p *Programmer) handshakeStep(ctx context.Context, state HandshakeState) (HandshakeState, error) {
	switch state {
	case StateStart:
		return p.handshakeStart(ctx)
	case StateSyn:
		return p.handshakeSyn(ctx)
	case StateAck:
		return p.handshakeAck(ctx)
	default:
		return state, fmt.Errorf("no transition from %v", state)
	}
}

// handshakeStart sends the autobaud character; the bootloader answers with
// the bare synchronization string.
func (p *Programmer) handshakeStart(ctx context.Context) (HandshakeState, error) {
	err := p.Execute(ctx, Transaction{
		Command: append(p.line[:0], cmdStart...),
		Echo:    []byte(respSync),
	})
	if err != nil {
		return StateStart, err
	}
	return StateSyn, nil
}

func (p *Programmer) handshakeSyn(ctx context.Context) (HandshakeState, error) {
	if err := p.command(ctx, append(p.line[:0], cmdSync...), StatusOK); err != nil {
		return StateSyn, err
	}
	return StateAck, nil
}

func (p *Programmer) handshakeAck(ctx context.Context) (HandshakeState, error) {
	if err := p.command(ctx, append(p.line[:0], cmdAck...), StatusOK); err != nil {
		return StateAck, err
	}
	return StateSuccessful, nil
}
