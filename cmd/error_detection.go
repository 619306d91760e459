// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/vedirect/pkg/vedirect"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze malformed records and resyncs",
	Long: `Track stream anomalies, stale frames and resynchronizations with statistics.

This command validates each record and detects:
  - Empty and unknown labels
  - Values that are not decimal integers or exceed the 32-bit range
  - Codes with no name in the charge state, error, warning, MPPT,
    device mode and product ID tables
  - Partial frames discarded after the line went quiet
  - Statistics and trends (record rate, error rate, success rate)

By default, only anomalies are displayed. Use --show-all to display valid
records too.

Records are validated in real-time, with anomalies highlighted immediately and
periodic statistics summaries displayed at configurable intervals.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all records (not just anomalies)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	errorDetectionCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	if statsInterval <= 0 {
		return fmt.Errorf("--stats-interval must be positive")
	}

	telemetry, decoder, err := newPipeline()
	if err != nil {
		return err
	}

	s, err := openStream(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	if useTUI {
		return runTUIMode(cmd, s, telemetry, decoder)
	}
	return runTextMode(cmd, s, decoder)
}

// syncTracker holds back anomaly reports until the first block boundary.
// Records before it may be the tail of a block that was cut mid-line.
type syncTracker struct {
	synchronized bool
	skipped      int
}

// record reports whether anomalies in the next record should be reported
func (s *syncTracker) record() bool {
	if !s.synchronized {
		s.skipped++
	}
	return s.synchronized
}

// checksum marks a block boundary, returning true the first time
func (s *syncTracker) checksum() bool {
	if s.synchronized {
		return false
	}
	s.synchronized = true
	return true
}

// printValidationErrors prints the anomalies found in a record
func printValidationErrors(r vedirect.Record, ts time.Time, anomalies []vedirect.ValidationError) {
	timestamp := ts.Format("15:04:05.000")

	fmt.Printf("[%s] \033[1;33mANOMALY:\033[0m %q = %q\n", timestamp, r.Label, r.Value)
	for i, err := range anomalies {
		switch err.Type {
		case vedirect.AnomalyOverflow:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)
			if parsed, ok := err.Details["parsed"].(int); ok {
				fmt.Printf("    Saturated to %d\n", parsed)
			}

		case vedirect.AnomalyNonNumeric:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)
			if parsed, ok := err.Details["parsed"].(int); ok {
				fmt.Printf("    Parsed as %d\n", parsed)
			}

		case vedirect.AnomalyUnmappedCode:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)

		default:
			fmt.Printf("  Issue %d: %s\n", i+1, err.Message)
		}
	}
	fmt.Println()
}

// runTUIMode runs error detection in TUI mode
func runTUIMode(cmd *cobra.Command, s *stream, telemetry *vedirect.Telemetry, decoder *vedirect.Decoder) error {
	ctx := cmd.Context()
	stats := vedirect.NewStatistics()

	m := initialModel(s.info, statsInterval, showAll, stats, telemetry)
	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen())

	var sync syncTracker
	tok := newTokenizer(
		vedirect.RecordHandlerFunc(func(r vedirect.Record) {
			validationErrors := vedirect.ValidateRecord(r)
			report := sync.record()
			stats.Update(r, validationErrors)
			decoder.HandleRecord(r)
			p.Send(recordMsg{record: r, at: time.Now(), validationErrors: validationErrors, reported: report})
		}),
		vedirect.WithChecksumHandler(func() {
			stats.ChecksumFrame()
			if sync.checksum() {
				p.Send(syncMsg{skipped: sync.skipped})
			}
		}),
		vedirect.WithStaleHandler(func(partial vedirect.Record, idle time.Duration) {
			stats.StaleReset()
			p.Send(staleMsg{label: partial.Label, idle: idle})
		}),
	)

	go func() {
		err := s.poll(ctx, tok, func(n int, _ time.Time) { stats.AddBytes(n) })
		p.Send(closedMsg{err: err})
	}()

	if _, err := p.Run(); err != nil && !isClosed(err) && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}

// runTextMode runs error detection in text mode
func runTextMode(cmd *cobra.Command, s *stream, decoder *vedirect.Decoder) error {
	ctx := cmd.Context()

	fmt.Printf("vedirect - Error Detection Mode\n")
	fmt.Printf("Connection: %s\n", s.info)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All records\n")
	} else {
		fmt.Printf("Mode: Anomalies only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := vedirect.NewStatistics()
	var sync syncTracker

	tok := newTokenizer(
		vedirect.RecordHandlerFunc(func(r vedirect.Record) {
			now := time.Now()
			validationErrors := vedirect.ValidateRecord(r)
			report := sync.record()
			stats.Update(r, validationErrors)
			decoder.HandleRecord(r)

			if len(validationErrors) > 0 && report {
				printValidationErrors(r, now, validationErrors)
			} else if showAll {
				fmt.Print(vedirect.FormatRecord(r, now))
			}
		}),
		vedirect.WithChecksumHandler(func() {
			stats.ChecksumFrame()
			if !sync.checksum() {
				return
			}
			if sync.skipped > 0 {
				fmt.Printf("[SYNC] Synchronized after skipping %d records\n\n", sync.skipped)
			} else {
				fmt.Printf("[SYNC] Synchronized\n\n")
			}
		}),
		vedirect.WithStaleHandler(func(partial vedirect.Record, idle time.Duration) {
			stats.StaleReset()
			fmt.Printf("[%s] \033[1;31mSTALE FRAME:\033[0m discarded %q after %s idle\n\n",
				time.Now().Format("15:04:05.000"), partial.Label, idle.Round(time.Millisecond))
		}),
	)

	// Statistics are printed from the poll goroutine
	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	err := s.poll(ctx, tok, func(n int, _ time.Time) {
		stats.AddBytes(n)
		select {
		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		default:
		}
	})

	fmt.Println()
	fmt.Print(stats.String())
	return err
}
