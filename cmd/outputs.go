// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/Thermoquad/vedirect/pkg/vedirect"
	"github.com/spf13/cobra"
)

var outputsCmd = &cobra.Command{
	Use:   "outputs",
	Short: "List the readings the decoder can publish",
	Long: `List every output key with its name, unit and kind.

Keys are what --outputs and the decoder.outputs config setting accept.
Outputs marked "once" are published a single time per session.`,
	RunE: runOutputs,
}

func init() {
	rootCmd.AddCommand(outputsCmd)
}

func runOutputs(cmd *cobra.Command, args []string) error {
	fmt.Printf("%-28s %-32s %-6s %-7s %s\n", "KEY", "NAME", "UNIT", "KIND", "")
	for _, o := range vedirect.Outputs() {
		latch := ""
		if o.LatchOnce() {
			latch = "once"
		}
		fmt.Printf("%-28s %-32s %-6s %-7s %s\n", o.Key(), o.Name(), o.Unit(), o.Kind(), latch)
	}
	return nil
}
