// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package isp

import (
	"context"
	"fmt"
)

// Programmer runs ISP transactions against one target.
//
// Programmer is not safe for concurrent use; only one session may be active
// against a transport at a time.
type Programmer struct {
	transport Transport
	config    Config

	line [maxCommandLen]byte
	recv [maxRecvLen]byte
}

// New creates a Programmer that talks over transport.
//
// Example:
//
//	port, _ := serial.Open("/dev/ttyUSB0", mode)
//	prog := isp.New(isp.NewPortTransport(port), isp.WithLogger(logger))
func New(transport Transport, opts ...Option) *Programmer {
	if transport == nil {
		panic("transport cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Programmer{
		transport: transport,
		config:    cfg,
	}
}

// Begin starts a reflash session: handshake, version check and erase of the
// whole sector range. The returned Session receives the payload.
func (p *Programmer) Begin(ctx context.Context) (*Session, error) {
	p.reportProgress(Progress{Phase: PhaseHandshake})

	var err error
	for attempt := 0; attempt <= p.config.Retries; attempt++ {
		if attempt > 0 {
			p.logInfo("retrying handshake", "attempt", attempt)
		}
		if _, err = p.Handshake(ctx); err == nil || ctx.Err() != nil {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	p.reportProgress(Progress{Phase: PhaseVersion})
	version, err := p.ReadVersion(ctx)
	if err != nil {
		return nil, err
	}
	p.logInfo("bootloader version", "version", version)
	p.config.Statistics.setVersion(version)

	p.reportProgress(Progress{Phase: PhaseErase})
	if err := p.PrepareSectors(ctx); err != nil {
		return nil, fmt.Errorf("prepare sectors: %w", err)
	}

	return newSession(p), nil
}

// reportProgress calls the progress callback if configured.
func (p *Programmer) reportProgress(progress Progress) {
	if p.config.ProgressCallback != nil {
		p.config.ProgressCallback(progress)
	}
}

func (p *Programmer) logDebug(msg string, keysAndValues ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Debug(msg, keysAndValues...)
	}
}

func (p *Programmer) logInfo(msg string, keysAndValues ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Info(msg, keysAndValues...)
	}
}

func (p *Programmer) logError(msg string, keysAndValues ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Error(msg, keysAndValues...)
	}
}
