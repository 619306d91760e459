// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var linkTestCmd = &cobra.Command{
	Use:   "link_test",
	Short: "Test raw link stability without decoding",
	Long: `Open the serial port or WebSocket bridge and log every chunk received.

Nothing is tokenized; bytes are printed as quoted text so line endings and
tabs stay visible. Useful for debugging a flaky bridge or a wrong baud rate.

Exit codes:
  0 - Test completed normally
  1 - Test failed
  2 - Connection error`,
	RunE: runLinkTest,
}

var linkTestDuration int

func init() {
	rootCmd.AddCommand(linkTestCmd)
	linkTestCmd.Flags().IntVar(&linkTestDuration, "duration", 30, "Test duration in seconds")
}

// linkResults summarizes a link test run
type linkResults struct {
	started time.Time
	chunks  int
	bytes   int
}

func (r *linkResults) add(data []byte) {
	r.chunks++
	r.bytes += len(data)
}

func (r *linkResults) print(result string) {
	fmt.Printf("\n--- Test Results ---\n")
	fmt.Printf("Duration: %s\n", time.Since(r.started).Round(time.Millisecond))
	fmt.Printf("Chunks received: %d\n", r.chunks)
	fmt.Printf("Bytes received: %d\n", r.bytes)
	fmt.Printf("Result: %s\n", result)
}

func runLinkTest(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Link Stability Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Duration: %d seconds\n\n", linkTestDuration)

	readChan := make(chan []byte, 100)
	errChan := make(chan error, 1)

	go func() {
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				readChan <- data
			}
		}
	}()

	results := &linkResults{started: time.Now()}
	endTime := results.started.Add(time.Duration(linkTestDuration) * time.Second)
	heartbeat := time.NewTicker(time.Second)
	defer heartbeat.Stop()

	fmt.Printf("Listening for data...\n\n")

	for time.Now().Before(endTime) {
		select {
		case data := <-readChan:
			results.add(data)
			fmt.Printf("[%s] Received %d bytes: %s\n",
				time.Now().Format("15:04:05.000"), len(data), strconv.Quote(string(data)))

		case err := <-errChan:
			fmt.Printf("\n[%s] Connection error: %v\n", time.Now().Format("15:04:05.000"), err)
			results.print("FAILED (connection error)")
			os.Exit(1)

		case <-cmd.Context().Done():
			results.print("INTERRUPTED")
			return nil

		case <-heartbeat.C:
			fmt.Printf("[%s] Still connected... (%.0fs remaining)\n",
				time.Now().Format("15:04:05.000"), time.Until(endTime).Seconds())
		}
	}

	if results.bytes == 0 {
		results.print("FAILED (no data received)")
		os.Exit(1)
	}
	results.print("PASSED (link stable)")

	return nil
}
