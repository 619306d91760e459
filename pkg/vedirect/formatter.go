// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatRecord formats a record and its decoded readings for a log line
func FormatRecord(r Record, ts time.Time) string {
	timestamp := ts.Format("15:04:05.000")

	f, ok := LookupField(r.Label)
	if !ok {
		return fmt.Sprintf("[%s] %-8s %-12s (unknown label)\n", timestamp, printable(r.Label), printable(r.Value))
	}

	result := fmt.Sprintf("[%s] %-8s %s\n", timestamp, r.Label, printable(r.Value))
	readings := DecodeField(f, r.Value)
	if len(readings) == 0 {
		result += "  (no value)\n"
	}
	for _, reading := range readings {
		result += fmt.Sprintf("  %-20s %s\n", reading.Output.Name()+":", FormatReading(reading))
	}
	return result
}

// FormatReading formats a reading value with its unit
func FormatReading(r Reading) string {
	switch r.Output.Kind() {
	case KindText:
		return r.Text
	case KindBinary:
		if r.State {
			return "ON"
		}
		return "OFF"
	}

	value := strconv.FormatFloat(r.Number, 'f', precision(r.Output), 64)
	if unit := r.Output.Unit(); unit != "" {
		return value + " " + unit
	}
	return value
}

func precision(o Output) int {
	switch o {
	case OutputPanelVoltage, OutputBatteryVoltage, OutputBatteryCurrent, OutputLoadCurrent:
		return 3
	case OutputACOutVoltage:
		return 2
	case OutputACOutCurrent:
		return 1
	default:
		return 0
	}
}

// printable escapes control bytes so raw frames can be shown on a terminal
func printable(s string) string {
	if strings.IndexFunc(s, func(r rune) bool { return r < 0x20 || r == 0x7F }) < 0 {
		return s
	}
	q := strconv.Quote(s)
	return q[1 : len(q)-1]
}
