// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/vedirect/pkg/vedirect"
	"github.com/spf13/cobra"
)

var (
	frameTestTimeout int
)

var frameTestCmd = &cobra.Command{
	Use:   "frame_test",
	Short: "Test connection by waiting for a complete VE.Direct block",
	Long: `Wait for a complete block of records on the connection until timeout.

The first checksum line only marks where the stream was joined, since the
block before it may have been cut. The test passes once the block after it
ends with its own checksum line.

Exit codes:
  0 - Block received before timeout
  1 - Timeout reached without receiving a complete block
  2 - Connection error

Useful for checking wiring and baud rate before running the monitor.`,
	RunE: runFrameTest,
}

func init() {
	rootCmd.AddCommand(frameTestCmd)
	frameTestCmd.Flags().IntVar(&frameTestTimeout, "timeout", 10, "Timeout in seconds to wait for a block")
}

// blockCollector gathers the records of the first block that starts on a
// block boundary
type blockCollector struct {
	synchronized bool
	skipped      int
	records      []vedirect.Record
	done         chan []vedirect.Record
}

func newBlockCollector() *blockCollector {
	return &blockCollector{done: make(chan []vedirect.Record, 1)}
}

func (b *blockCollector) HandleRecord(r vedirect.Record) {
	if !b.synchronized {
		b.skipped++
		return
	}
	b.records = append(b.records, r)
}

func (b *blockCollector) checksum() {
	if !b.synchronized {
		b.synchronized = true
		return
	}
	if len(b.records) == 0 {
		return
	}
	select {
	case b.done <- b.records:
	default:
	}
	b.records = nil
}

func runFrameTest(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	s, err := openStream(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer s.Close()

	fmt.Printf("vedirect - Frame Test\n")
	fmt.Printf("Connection: %s\n", s.info)
	fmt.Printf("Timeout: %d seconds\n", frameTestTimeout)
	fmt.Printf("Waiting for a complete block...\n\n")

	collector := newBlockCollector()
	tok := newTokenizer(collector, vedirect.WithChecksumHandler(collector.checksum))

	errChan := make(chan error, 1)
	go func() {
		err := s.poll(ctx, tok, nil)
		if err == nil {
			err = ErrConnectionClosed
		}
		errChan <- err
	}()

	select {
	case records := <-collector.done:
		if collector.skipped > 0 {
			fmt.Printf("(skipped %d records before the first block boundary)\n", collector.skipped)
		}
		fmt.Printf("SUCCESS: Received complete block\n")
		fmt.Printf("  Records: %d\n", len(records))
		for _, r := range records {
			if r.Label != vedirect.FieldPID.Label() {
				continue
			}
			if name, ok := vedirect.DeviceTypeText(vedirect.ParseInteger(r.Value)); ok {
				fmt.Printf("  Device: %s (%s)\n", name, r.Value)
			} else {
				fmt.Printf("  Device: unknown product ID %s\n", r.Value)
			}
		}
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(frameTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No complete block received within %d seconds\n", frameTestTimeout)
		os.Exit(1)
	}

	return nil
}
