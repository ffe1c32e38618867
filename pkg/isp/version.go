// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package isp

import (
	"context"
	"fmt"
)

// versionResponseLen is "J", separator, "0", gap, then the numeric field.
const versionResponseLen = len(cmdVersion) + separatorLen + len(StatusZero) + versionGap + VersionLen

// ReadVersion queries the bootloader version. A zero result, or a response
// that does not echo the query and accept it, is ErrVersionUnsupported.
func (p *Programmer) ReadVersion(ctx context.Context) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	resp, err := p.roundTrip(append(p.line[:0], cmdVersion...), true, versionResponseLen)
	if err != nil {
		return 0, reject("read version", ErrVersionUnsupported, err)
	}

	if string(resp[:len(cmdVersion)]) != cmdVersion {
		return 0, reject("read version", ErrVersionUnsupported,
			p.mismatch([]byte(cmdVersion), []byte(cmdVersion), StatusZero, resp))
	}
	status := len(cmdVersion) + separatorLen
	if string(resp[status:status+len(StatusZero)]) != StatusZero {
		return 0, reject("read version", ErrVersionUnsupported,
			p.mismatch([]byte(cmdVersion), []byte(cmdVersion), StatusZero, resp))
	}

	version := parseVersion(resp[status+len(StatusZero)+versionGap:])
	if version == 0 {
		return 0, reject("read version", ErrVersionUnsupported,
			fmt.Errorf("no version digits in %q", resp))
	}
	return version, nil
}

// parseVersion accumulates the decimal digits of field left to right,
// skipping anything that is not a digit.
func parseVersion(field []byte) uint32 {
	var version uint32
	for _, c := range field {
		if c >= '0' && c <= '9' {
			version = version*10 + uint32(c-'0')
		}
	}
	return version
}
