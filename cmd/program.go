// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/Thermoquad/lpcisp/pkg/isp"
	"github.com/Thermoquad/lpcisp/pkg/isp/isptest"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	programRecordSize int
	programTUI        bool
	programReport     string
	programDryRun     bool
	programRetries    int
	programReset      bool
)

var programCmd = &cobra.Command{
	Use:   "program <image.bin>",
	Short: "Write a raw binary image into flash",
	Long: `Erase the whole flash range and write a raw binary image from offset 0.

The image is padded with 0xFF to a whole number of 32-bit words and must fit
in 44032 bytes. It is split into command records of --record-size bytes,
word-swapped the way the upstream bus delivers them, and streamed through the
bootloader one 1024-byte unit at a time. A partial last unit is padded with
0xFF.

With --dry-run the image is written to a simulated bootloader and the result
is verified byte for byte; no connection is opened.

With --report the session outcome (units written, flash cursor, failure
reason and transaction counters) is saved as CBOR for 'lpcisp report'.`,
	Args: cobra.ExactArgs(1),
	RunE: runProgram,
}

func init() {
	rootCmd.AddCommand(programCmd)
	programCmd.Flags().IntVar(&programRecordSize, "record-size", 256, "Payload bytes per command record (multiple of 4, at most 1024)")
	programCmd.Flags().BoolVar(&programTUI, "tui", false, "Show a live terminal UI")
	programCmd.Flags().StringVar(&programReport, "report", "", "Save a CBOR session report to this file")
	programCmd.Flags().BoolVar(&programDryRun, "dry-run", false, "Program a simulated bootloader instead of a device")
	programCmd.Flags().IntVar(&programRetries, "retries", 0, "Times to repeat a failed handshake or unit")
	programCmd.Flags().BoolVar(&programReset, "reset", false, "Pulse DTR/RTS to enter ISP mode first (serial only)")
}

// loadImage reads a raw binary image and pads it to a word multiple.
func loadImage(path string) ([]byte, error) {
	image, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("image %s is empty", path)
	}
	if len(image) > isp.FlashEnd {
		return nil, fmt.Errorf("image is %d bytes, flash holds %d", len(image), isp.FlashEnd)
	}
	for len(image)%isp.WordSize != 0 {
		image = append(image, isp.FillerByte)
	}
	return image, nil
}

// buildRecords splits image into command records carrying word-swapped
// payload, as the upstream bus delivers them.
func buildRecords(image []byte, recordSize int) ([][]byte, error) {
	if recordSize <= 0 || recordSize%isp.WordSize != 0 || recordSize > isp.UnitSize {
		return nil, fmt.Errorf("record size %d must be a positive multiple of %d up to %d",
			recordSize, isp.WordSize, isp.UnitSize)
	}

	records := make([][]byte, 0, (len(image)+recordSize-1)/recordSize)
	payload := make([]byte, recordSize)
	for off := 0; off < len(image); off += recordSize {
		end := min(off+recordSize, len(image))
		p := payload[:end-off]
		isp.SwapWords(p, image[off:end])
		records = append(records, isp.EncodeRecord(uint32(off), p))
	}
	return records, nil
}

// flashImage runs a complete session. The session is returned even on
// failure so its position can be reported.
func flashImage(ctx context.Context, prog *isp.Programmer, records [][]byte) (*isp.Session, error) {
	s, err := prog.Begin(ctx)
	if err != nil {
		return nil, err
	}
	for i, rec := range records {
		if err := s.WriteRecord(ctx, rec); err != nil {
			return s, fmt.Errorf("record %d: %w", i, err)
		}
	}
	if err := s.Finish(ctx); err != nil {
		return s, fmt.Errorf("finish: %w", err)
	}
	return s, nil
}

// unitsFor returns the number of flash units image occupies.
func unitsFor(image []byte) int {
	return (len(image) + isp.UnitSize - 1) / isp.UnitSize
}

func runProgram(cmd *cobra.Command, args []string) error {
	image, err := loadImage(args[0])
	if err != nil {
		return err
	}
	records, err := buildRecords(image, programRecordSize)
	if err != nil {
		return err
	}

	var (
		transport isp.Transport
		target    *isptest.Target
		connInfo  string
	)
	if programDryRun {
		target = isptest.NewTarget()
		transport = target
		connInfo = "dry run (simulated bootloader)"
	} else {
		conn, info, err := OpenConnection()
		if err != nil {
			return err
		}
		defer conn.Close()

		if programReset {
			sc, ok := conn.(*SerialConnection)
			if !ok {
				return fmt.Errorf("--reset needs a serial connection")
			}
			if err := sc.EnterISP(); err != nil {
				return err
			}
		}
		transport = newTransport(conn)
		connInfo = info
	}

	ctx := cmd.Context()
	stats := isp.NewStatistics()
	report := &isp.Report{
		Started:    time.Now(),
		Image:      filepath.Base(args[0]),
		ImageSize:  len(image),
		Connection: connInfo,
	}

	var s *isp.Session
	if programTUI {
		s, err = runProgramTUI(ctx, transport, stats, records, connInfo, unitsFor(image))
	} else {
		s, err = runProgramText(ctx, transport, stats, records, connInfo, unitsFor(image))
	}

	report.Close(s, stats, err)
	if programReport != "" {
		if werr := writeReport(programReport, report); werr != nil {
			log.Printf("Failed to save report: %v", werr)
			fmt.Fprintf(os.Stderr, "Warning: %v\n", werr)
		}
	}
	if err != nil {
		return err
	}

	if target != nil {
		if !bytes.Equal(target.Flash[:len(image)], image) {
			return fmt.Errorf("dry run: simulated flash does not match the image")
		}
		fmt.Printf("Dry run verified: %d bytes in %d units\n", len(image), s.Units())
	}
	return nil
}

func runProgramText(ctx context.Context, transport isp.Transport, stats *isp.Statistics,
	records [][]byte, connInfo string, units int) (*isp.Session, error) {

	fmt.Printf("lpcisp - Program\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Records: %d of up to %d bytes, %d units\n\n", len(records), programRecordSize, units)

	bar := progressbar.NewOptions(units*isp.UnitSize,
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Connecting"),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWriter(os.Stderr),
	)

	phase := ""
	prog := isp.New(transport,
		isp.WithLogger(stdLogger{}),
		isp.WithStatistics(stats),
		isp.WithRetries(programRetries),
		isp.WithProgressCallback(func(p isp.Progress) {
			if p.Phase != phase {
				phase = p.Phase
				bar.Describe(phaseDescription(phase))
			}
			_ = bar.Set(int(p.Cursor))
		}),
	)

	s, err := flashImage(ctx, prog, records)
	if err != nil {
		fmt.Fprintln(os.Stderr)
		return s, err
	}
	_ = bar.Finish()

	fmt.Printf("\n\nFlashing completed successfully!\n\n")
	fmt.Print(stats.String())
	return s, nil
}

func phaseDescription(phase string) string {
	switch phase {
	case isp.PhaseHandshake:
		return "Synchronizing"
	case isp.PhaseVersion:
		return "Reading version"
	case isp.PhaseErase:
		return "Erasing"
	case isp.PhaseWriting:
		return "Writing"
	case isp.PhaseFinishing:
		return "Finishing"
	case isp.PhaseComplete:
		return "Done"
	default:
		return phase
	}
}
