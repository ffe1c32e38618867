// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package isp

import "context"

// PrepareSectors unlocks the bootloader, then prepares and erases the whole
// sector range. The first rejection aborts the sequence.
func (p *Programmer) PrepareSectors(ctx context.Context) error {
	if err := p.unlock(ctx); err != nil {
		return err
	}
	if err := p.prepare(ctx); err != nil {
		return err
	}
	if err := p.command(ctx, p.format(cmdErase, FirstSector, LastSector), StatusZero); err != nil {
		return reject("erase sectors", ErrEraseRejected, err)
	}
	p.logInfo("sectors erased", "first", FirstSector, "last", LastSector)
	return nil
}
