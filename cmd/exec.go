// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/Thermoquad/lpcisp/pkg/isp"
	"github.com/spf13/cobra"
)

var (
	execStatus      string
	execNoHandshake bool
)

var execCmd = &cobra.Command{
	Use:   "exec <command>",
	Short: "Send one raw ISP command and check the response",
	Long: `Synchronize with the bootloader, then send one command line and verify that
the response echoes it and carries the expected status token.

Multi-word commands must be quoted:
  lpcisp exec "U 23130"
  lpcisp exec "P 0 29" --status 0

On a mismatch the raw response is printed so the bootloader's return code can
be read.`,
	Args: cobra.ExactArgs(1),
	RunE: runExec,
}

func init() {
	rootCmd.AddCommand(execCmd)
	execCmd.Flags().StringVar(&execStatus, "status", isp.StatusZero, "Expected status token (empty for echo only)")
	execCmd.Flags().BoolVar(&execNoHandshake, "no-handshake", false, "Skip the handshake (bootloader already synchronized)")
}

func runExec(cmd *cobra.Command, args []string) error {
	command := strings.TrimSpace(args[0])
	if command == "" {
		return fmt.Errorf("empty command")
	}

	// Open connection (serial or WebSocket)
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("lpcisp - Exec\n")
	fmt.Printf("Connection: %s\n\n", connInfo)

	prog := isp.New(newTransport(conn), isp.WithLogger(stdLogger{}))
	ctx := cmd.Context()

	if !execNoHandshake {
		if _, err := prog.Handshake(ctx); err != nil {
			return err
		}
		log.Printf("Synchronized")
	}

	tx := isp.Transaction{
		Command:   []byte(command),
		Terminate: true,
		Status:    execStatus,
	}
	if err := prog.Execute(ctx, tx); err != nil {
		var mm *isp.MismatchError
		if errors.As(err, &mm) {
			fmt.Printf("MISMATCH\n")
			fmt.Printf("  Sent:     %q\n", mm.Sent)
			fmt.Printf("  Expected: %q\n", mm.Expected)
			fmt.Printf("  Received: %q\n", mm.Received)
		}
		return err
	}

	fmt.Printf("OK: %q answered with %q\n", command, execStatus)
	return nil
}
