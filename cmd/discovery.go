// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.bug.st/serial"
)

var (
	discoveryTimeout time.Duration
	discoveryReset   bool
)

var discoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Find serial ports with an LPC bootloader attached",
	Long: `Probe every serial port on the system for an LPC ISP bootloader.

Each port is opened at --baud and given one handshake attempt with a short
response timeout. Ports that synchronize are listed with their bootloader
version. A successful handshake leaves the bootloader synchronized, so a
later 'lpcisp program' on that port should use --reset or a power cycle.

Examples:
  # Scan all ports at the default baud rate
  lpcisp discovery

  # Reset each target into ISP mode before probing
  lpcisp discovery --reset --baud 57600

Exit codes:
  0 - Discovery successful (at least one bootloader found)
  1 - Discovery failed (no bootloader answered)
  2 - Port enumeration error`,
	RunE: runDiscovery,
}

func init() {
	rootCmd.AddCommand(discoveryCmd)
	discoveryCmd.Flags().DurationVar(&discoveryTimeout, "probe-timeout", 500*time.Millisecond, "Response timeout per port")
	discoveryCmd.Flags().BoolVar(&discoveryReset, "reset", false, "Pulse DTR/RTS on each port before probing")
}

// discoveryResult is one port that answered.
type discoveryResult struct {
	port    string
	version uint32
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	ports, err := serial.GetPortsList()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Port enumeration error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("lpcisp - Bootloader Discovery\n")
	fmt.Printf("Ports: %d\n", len(ports))
	fmt.Printf("Baud: %d\n", baudRate)
	fmt.Printf("Timeout: %v per port\n\n", discoveryTimeout)

	found := make([]discoveryResult, 0)
	for _, name := range ports {
		fmt.Printf("%-24s ", name)
		conn, err := OpenSerialConnection(name, baudRate)
		if err != nil {
			fmt.Printf("unavailable (%v)\n", err)
			continue
		}

		if discoveryReset {
			if err := conn.EnterISP(); err != nil {
				conn.Close()
				fmt.Printf("reset failed (%v)\n", err)
				continue
			}
		}

		t, _ := lineTerminator()
		transport := newPortTransport(conn, discoveryTimeout, t)
		result, err := probe(cmd.Context(), transport, 0)
		conn.Close()
		if err != nil {
			fmt.Printf("no bootloader (%s)\n", result.state)
			continue
		}

		fmt.Printf("bootloader version %d\n", result.version)
		found = append(found, discoveryResult{port: name, version: result.version})
	}

	fmt.Println()
	if len(found) == 0 {
		fmt.Fprintf(os.Stderr, "No bootloader found\n")
		os.Exit(1)
	}

	fmt.Printf("Found %d bootloader(s):\n", len(found))
	for _, r := range found {
		fmt.Printf("  %s (version %d)\n", r.port, r.version)
	}
	return nil
}
