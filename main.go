// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// lpcisp - NXP LPC ISP bootloader programmer
//
// A CLI tool for reflashing LPC microcontrollers over the ROM bootloader's
// serial in-system-programming protocol.

package main

import (
	"os"

	"github.com/Thermoquad/lpcisp/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
