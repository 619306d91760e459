// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/Thermoquad/vedirect/pkg/vedirect"
	"github.com/spf13/cobra"
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw records in human-readable format",
	Long: `Continuously tokenize and display VE.Direct records as they arrive.

Each record is printed with a timestamp, its raw label and value, and the
readings it decodes to. Labels outside the known set are shown as unknown.
Checksum lines and stale partial frames are reported inline.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := openStream(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Printf("vedirect - Raw Record Log\n")
	fmt.Printf("Connection: %s\n", s.info)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	tok := newTokenizer(
		vedirect.RecordHandlerFunc(func(r vedirect.Record) {
			fmt.Print(vedirect.FormatRecord(r, time.Now()))
		}),
		vedirect.WithChecksumHandler(func() {
			fmt.Printf("[%s] -- end of block --\n\n", time.Now().Format("15:04:05.000"))
		}),
		vedirect.WithStaleHandler(func(partial vedirect.Record, idle time.Duration) {
			fmt.Printf("[%s] [STALE] discarded partial frame %q after %s\n",
				time.Now().Format("15:04:05.000"), partial.Label, idle.Round(time.Millisecond))
		}),
	)

	if err := s.poll(ctx, tok, nil); err != nil {
		return err
	}
	fmt.Printf("Connection closed\n")
	return nil
}
