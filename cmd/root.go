// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/lpcisp/pkg/isp"
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Protocol flags
	readTimeout time.Duration
	terminator  string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "lpcisp",
	Short: "NXP LPC ISP bootloader programmer",
	Long: `lpcisp - Reflash NXP LPC microcontrollers through the ROM ISP bootloader.

Every command line sent to the bootloader must be echoed back exactly and
answered with the expected status; anything else aborts the session.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the LPCISP_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version: "1.0.0",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !verbose {
			log.SetOutput(io.Discard)
		}
		if _, err := lineTerminator(); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Protocol flags
	rootCmd.PersistentFlags().DurationVar(&readTimeout, "timeout", isp.DefaultReadTimeout, "Response timeout per transaction")
	rootCmd.PersistentFlags().StringVar(&terminator, "terminator", `\r`, `Line terminator, Go escapes allowed (e.g. "\r\n")`)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every transaction to stderr")
}

// Execute runs the root command. An interrupt cancels the running session
// between transactions.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// lineTerminator interprets the --terminator flag.
func lineTerminator() (string, error) {
	t, err := strconv.Unquote(`"` + strings.ReplaceAll(terminator, `"`, `\"`) + `"`)
	if err != nil {
		return "", fmt.Errorf("invalid --terminator %q: %v", terminator, err)
	}
	if t == "" {
		return "", fmt.Errorf("--terminator cannot be empty")
	}
	return t, nil
}

// newTransport wraps an open connection with the configured timeout and
// terminator.
func newTransport(conn Connection) isp.Transport {
	t, _ := lineTerminator()
	return newPortTransport(conn, readTimeout, t)
}

func newPortTransport(conn Connection, timeout time.Duration, terminator string) isp.Transport {
	return isp.NewPortTransport(conn,
		isp.WithReadTimeout(timeout),
		isp.WithTerminator(terminator),
	)
}

// stdLogger routes protocol trace output to the standard logger, which is
// silenced unless --verbose is given.
type stdLogger struct{}

func (stdLogger) Debug(msg string, keysAndValues ...interface{}) {
	log.Print(formatLogLine("DEBUG", msg, keysAndValues))
}

func (stdLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Print(formatLogLine("INFO", msg, keysAndValues))
}

func (stdLogger) Error(msg string, keysAndValues ...interface{}) {
	log.Print(formatLogLine("ERROR", msg, keysAndValues))
}

func formatLogLine(level, msg string, keysAndValues []interface{}) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", level, msg)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fmt.Fprintf(&b, " %v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	if len(keysAndValues)%2 == 1 {
		fmt.Fprintf(&b, " %v", keysAndValues[len(keysAndValues)-1])
	}
	return b.String()
}
