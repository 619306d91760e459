// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.bug.st/serial/enumerator"
)

// FTDI FT231X, used by the Victron VE.Direct to USB cable
const (
	veDirectUSBVID = "0403"
	veDirectUSBPID = "6015"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Long: `List the serial ports on this machine.

USB ports matching the VE.Direct to USB interface (FTDI 0403:6015) are marked.`,
	RunE: runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

// isVEDirectCable reports whether a USB port looks like the VE.Direct cable
func isVEDirectCable(p *enumerator.PortDetails) bool {
	return p.IsUSB &&
		strings.EqualFold(p.VID, veDirectUSBVID) &&
		strings.EqualFold(p.PID, veDirectUSBPID)
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return fmt.Errorf("failed to list serial ports: %w", err)
	}

	if len(ports) == 0 {
		fmt.Printf("No serial ports found\n")
		return nil
	}

	for _, p := range ports {
		line := p.Name
		if p.IsUSB {
			line += fmt.Sprintf("  USB %s:%s", p.VID, p.PID)
			if p.SerialNumber != "" {
				line += fmt.Sprintf(" serial=%s", p.SerialNumber)
			}
			if p.Product != "" {
				line += fmt.Sprintf(" (%s)", p.Product)
			}
		}
		if isVEDirectCable(p) {
			line += "  [VE.Direct]"
		}
		fmt.Println(line)
	}
	return nil
}
