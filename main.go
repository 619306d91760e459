// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// vedirect - Victron VE.Direct Text Protocol Monitor
//
// A CLI tool for decoding VE.Direct text frames from solar charge
// controllers, inverters and battery monitors into typed readings.

package main

import (
	"os"

	"github.com/Thermoquad/vedirect/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
