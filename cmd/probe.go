// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/lpcisp/pkg/isp"
	"github.com/spf13/cobra"
)

var (
	probeRetries int
	probeReset   bool
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test connection by synchronizing with the bootloader",
	Long: `Run the ISP handshake and read the bootloader version, without touching flash.

Exit codes:
  0 - Bootloader synchronized and reported a supported version
  1 - Handshake or version check failed
  2 - Connection error

Useful for checking wiring, baud rate and ISP entry before programming.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeRetries, "retries", 2, "Times to repeat a failed handshake")
	probeCmd.Flags().BoolVar(&probeReset, "reset", false, "Pulse DTR/RTS to enter ISP mode first (serial only)")
}

// probeResult is what a successful probe learned.
type probeResult struct {
	state   isp.HandshakeState
	version uint32
	elapsed time.Duration
}

// probe synchronizes with the bootloader and reads its version.
func probe(ctx context.Context, transport isp.Transport, retries int) (probeResult, error) {
	start := time.Now()
	prog := isp.New(transport, isp.WithLogger(stdLogger{}))

	var (
		state isp.HandshakeState
		err   error
	)
	for attempt := 0; attempt <= retries; attempt++ {
		if state, err = prog.Handshake(ctx); err == nil || ctx.Err() != nil {
			break
		}
	}
	if err != nil {
		return probeResult{state: state}, err
	}

	version, err := prog.ReadVersion(ctx)
	if err != nil {
		return probeResult{state: state}, err
	}
	return probeResult{state: state, version: version, elapsed: time.Since(start)}, nil
}

func runProbe(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	if probeReset {
		sc, ok := conn.(*SerialConnection)
		if !ok {
			fmt.Fprintf(os.Stderr, "Connection error: --reset needs a serial connection\n")
			os.Exit(2)
		}
		if err := sc.EnterISP(); err != nil {
			fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
			os.Exit(2)
		}
	}

	fmt.Printf("lpcisp - Probe\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %v per response\n", readTimeout)
	fmt.Printf("Synchronizing with bootloader...\n\n")

	result, err := probe(cmd.Context(), newTransport(conn), probeRetries)
	if err != nil {
		conn.Close()
		fmt.Fprintf(os.Stderr, "FAILED: %v\n", err)
		fmt.Fprintf(os.Stderr, "  Handshake state: %s\n", result.state)
		os.Exit(1)
	}

	fmt.Printf("SUCCESS: Bootloader synchronized\n")
	fmt.Printf("  Handshake: %s\n", result.state)
	fmt.Printf("  Version: %d\n", result.version)
	fmt.Printf("  Time: %v\n", result.elapsed.Round(time.Millisecond))
	return nil
}
