// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package isp

import (
	"bytes"
	"context"
	"strconv"
)

// Transaction is one command line and the response it must produce.
type Transaction struct {
	// Command is the line sent to the bootloader
	Command []byte

	// Terminate appends the line terminator after Command
	Terminate bool

	// Echo is the expected start of the response; nil means Command itself
	Echo []byte

	// Status is the token expected after the echo and one separator byte.
	// Empty means the response is the echo alone.
	Status string
}

// ResponseLen returns the exact number of bytes the response must have.
func (tx Transaction) ResponseLen() int {
	n := len(tx.echo())
	if tx.Status != "" {
		n += separatorLen + len(tx.Status)
	}
	return n
}

func (tx Transaction) echo() []byte {
	if tx.Echo != nil {
		return tx.Echo
	}
	return tx.Command
}

// Execute sends tx and verifies the response: exact echo first, then exact
// status token. A mismatch anywhere rejects the whole transaction with an
// error wrapping ErrTransactionMismatch. Execute never retries; the context
// is only checked before the command goes out, since an exchange cannot be
// abandoned halfway without leaving the target in an unknown state.
func (p *Programmer) Execute(ctx context.Context, tx Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	resp, err := p.roundTrip(tx.Command, tx.Terminate, tx.ResponseLen())
	if err != nil {
		return err
	}

	echo := tx.echo()
	if !bytes.Equal(resp[:len(echo)], echo) {
		return p.mismatch(tx.Command, echo, tx.Status, resp)
	}
	if tx.Status != "" && string(resp[len(echo)+separatorLen:]) != tx.Status {
		return p.mismatch(tx.Command, echo, tx.Status, resp)
	}
	return nil
}

// roundTrip sends one line and reads exactly n response bytes into the
// programmer's receive buffer.
func (p *Programmer) roundTrip(cmd []byte, terminate bool, n int) ([]byte, error) {
	if p.config.Logger != nil {
		p.logDebug("send", "command", string(cmd))
	}

	var err error
	if terminate {
		err = p.transport.SendWithTerminator(cmd)
	} else {
		err = p.transport.Send(cmd)
	}
	if err != nil {
		p.config.Statistics.recordTransaction(len(cmd), 0, err)
		return nil, err
	}

	var resp []byte
	if n <= len(p.recv) {
		resp = p.recv[:n]
	} else {
		resp = make([]byte, n)
	}
	err = p.transport.ReceiveExact(resp)
	p.config.Statistics.recordTransaction(len(cmd), n, err)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (p *Programmer) mismatch(cmd, echo []byte, status string, resp []byte) error {
	expected := string(echo)
	if status != "" {
		expected += "?" + status
	}
	err := &MismatchError{
		Sent:     string(cmd),
		Expected: expected,
		Received: append([]byte(nil), resp...),
	}
	p.config.Statistics.recordMismatch()
	p.logError("response mismatch", "sent", err.Sent, "received", string(err.Received))
	return err
}

// format builds "<op> <arg> <arg>..." in the programmer's line buffer.
func (p *Programmer) format(op byte, args ...uint32) []byte {
	b := append(p.line[:0], op)
	for _, a := range args {
		b = append(b, ' ')
		b = strconv.AppendUint(b, uint64(a), 10)
	}
	return b
}

// command executes a fixed, terminated command expecting status.
func (p *Programmer) command(ctx context.Context, cmd []byte, status string) error {
	return p.Execute(ctx, Transaction{Command: cmd, Terminate: true, Status: status})
}

func (p *Programmer) unlock(ctx context.Context) error {
	if err := p.command(ctx, append(p.line[:0], cmdUnlock...), StatusZero); err != nil {
		return reject("unlock", ErrUnlockRejected, err)
	}
	return nil
}

func (p *Programmer) prepare(ctx context.Context) error {
	if err := p.command(ctx, p.format(cmdPrepare, FirstSector, LastSector), StatusZero); err != nil {
		return reject("prepare sectors", ErrSectorPrepareRejected, err)
	}
	return nil
}
