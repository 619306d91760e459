// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/vedirect/pkg/vedirect"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	captureOutput   string
	captureDuration time.Duration
	captureAppend   bool
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Record the record stream to a capture file",
	Long: `Tokenize the stream and append every record to a CBOR capture file.

Each entry carries the session ID, a millisecond timestamp and the raw label
and value bytes, so a capture can be replayed later with "vedirect replay"
without the device attached. Checksum lines are not recorded.`,
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)
	captureCmd.Flags().StringVarP(&captureOutput, "output", "o", "", "Capture file to write (required)")
	captureCmd.Flags().DurationVar(&captureDuration, "duration", 0, "Stop after this long (0 runs until interrupted)")
	captureCmd.Flags().BoolVar(&captureAppend, "append", false, "Append to an existing capture file")
	_ = captureCmd.MarkFlagRequired("output")
}

func runCapture(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if captureDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, captureDuration)
		defer cancel()
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if captureAppend {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(captureOutput, flags, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open capture file: %w", err)
	}
	defer f.Close()

	buf := bufio.NewWriter(f)
	session := uuid.New()
	writer := vedirect.NewCaptureWriter(buf, session)

	s, err := openStream(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Printf("vedirect - Capture\n")
	fmt.Printf("Connection: %s\n", s.info)
	fmt.Printf("Output: %s\n", captureOutput)
	fmt.Printf("Session: %s\n", session)
	fmt.Printf("Press Ctrl+C to stop\n\n")

	blocks := 0
	tok := newTokenizer(writer, vedirect.WithChecksumHandler(func() {
		blocks++
		// Flush on each block boundary
		if err := buf.Flush(); err != nil {
			logger.Error().Err(err).Msg("Failed to flush capture file")
		}
		fmt.Printf("\r[%s] %d records, %d blocks", time.Now().Format("15:04:05"), writer.Count(), blocks)
	}))

	pollErr := s.poll(ctx, tok, func(int, time.Time) {
		if err := writer.Err(); err != nil {
			logger.Error().Err(err).Msg("Capture write failed")
		}
	})
	if pollErr != nil && ctx.Err() != nil {
		pollErr = nil
	}

	if err := buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush capture file: %w", err)
	}
	fmt.Printf("\nCaptured %d records in %d blocks\n", writer.Count(), blocks)

	if pollErr != nil {
		return pollErr
	}
	return writer.Err()
}
