// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/Thermoquad/vedirect/pkg/vedirect"
	"github.com/spf13/cobra"
)

var (
	monitorOutputs []string
	monitorUnknown bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Decode records into named readings",
	Long: `Decode the stream and print every reading published to a sink.

Only the outputs selected with --outputs (comma separated keys, see
"vedirect outputs") are decoded; all outputs are used when none are given.
Firmware version, device type and load output state are published once per
session, the first time they arrive.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringSliceVar(&monitorOutputs, "outputs", nil, "Output keys to decode (default all)")
	monitorCmd.Flags().BoolVar(&monitorUnknown, "show-unknown", false, "Also print records with unknown labels")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	opts := []vedirect.DecoderOption{
		vedirect.WithPublishHook(func(r vedirect.Reading) {
			fmt.Printf("[%s] %-28s %s\n", time.Now().Format("15:04:05.000"), r.Output.Name()+":", vedirect.FormatReading(r))
		}),
	}
	if monitorUnknown {
		opts = append(opts, vedirect.WithUnknownHook(func(r vedirect.Record) {
			fmt.Printf("[%s] (unknown) %s=%s\n", time.Now().Format("15:04:05.000"), r.Label, r.Value)
		}))
	}

	telemetry, decoder, err := newPipeline(opts...)
	if err != nil {
		return err
	}
	vedirect.DumpConfig(logger.Logger, decoder.Sinks())

	s, err := openStream(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Printf("vedirect - Monitor\n")
	fmt.Printf("Connection: %s\n", s.info)
	fmt.Printf("Session: %s\n", telemetry.Session())
	fmt.Printf("Outputs: %d\n", len(telemetry.Outputs()))
	fmt.Printf("Press Ctrl+C to exit\n\n")

	if err := s.poll(ctx, newTokenizer(decoder), nil); err != nil {
		return err
	}
	fmt.Printf("Connection closed\n")
	return nil
}
