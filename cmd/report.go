// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/Thermoquad/lpcisp/pkg/isp"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report <file>",
	Short: "Print a saved session report",
	Long: `Decode and print a CBOR session report written by 'lpcisp program --report'.

For a failed session the report shows the flash cursor the session stopped
at, the number of bytes still staged, and the rejection reason.`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func writeReport(path string, r *isp.Report) error {
	data, err := isp.MarshalReport(r)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func readReport(path string) (*isp.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	return isp.UnmarshalReport(data)
}

func runReport(cmd *cobra.Command, args []string) error {
	r, err := readReport(args[0])
	if err != nil {
		return err
	}
	fmt.Print(r.String())
	return nil
}
