// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import (
	"strings"
	"testing"
)

func TestValidateRecord(t *testing.T) {
	tests := []struct {
		name   string
		record Record
		want   []AnomalyType
	}{
		{"valid voltage", Record{"V", "12800"}, nil},
		{"valid negative current", Record{"I", "-1200"}, nil},
		{"valid charging mode", Record{"CS", "3"}, nil},
		{"valid pid", Record{"PID", "0xA389"}, nil},
		{"valid firmware", Record{"FW", "150"}, nil},
		{"load any value", Record{"LOAD", "MAYBE"}, nil},
		{"empty label", Record{"", "123"}, []AnomalyType{AnomalyEmptyLabel}},
		{"unknown label", Record{"SER#", "HQ123"}, []AnomalyType{AnomalyUnknownLabel}},
		{"non numeric", Record{"V", "12.8"}, []AnomalyType{AnomalyNonNumeric}},
		{"empty numeric", Record{"PPV", ""}, []AnomalyType{AnomalyNonNumeric}},
		{"overflow", Record{"H19", "2147483648"}, []AnomalyType{AnomalyOverflow}},
		{"overflow with junk", Record{"H19", "99999999999x"}, []AnomalyType{AnomalyOverflow}},
		{"in range with junk", Record{"H19", "2147483647x"}, []AnomalyType{AnomalyNonNumeric}},
		{"unmapped charging mode", Record{"CS", "1"}, []AnomalyType{AnomalyUnmappedCode}},
		{"combined warnings", Record{"WARN", "3"}, []AnomalyType{AnomalyUnmappedCode}},
		{"unmapped pid", Record{"PID", "0xFFFF"}, []AnomalyType{AnomalyUnmappedCode}},
		{"short firmware", Record{"FW", "7"}, []AnomalyType{AnomalyShortFirmware}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateRecord(tt.record)
			if len(errs) != len(tt.want) {
				t.Fatalf("Expected %d errors, got %d: %+v", len(tt.want), len(errs), errs)
			}
			for i, want := range tt.want {
				if errs[i].Type != want {
					t.Errorf("Error %d: expected %s, got %s", i, want, errs[i].Type)
				}
				if errs[i].Error() == "" {
					t.Errorf("Error %d has no message", i)
				}
			}
		})
	}
}

func TestAnomalyType_String(t *testing.T) {
	names := map[AnomalyType]string{
		AnomalyEmptyLabel:    "EMPTY_LABEL",
		AnomalyUnknownLabel:  "UNKNOWN_LABEL",
		AnomalyNonNumeric:    "NON_NUMERIC",
		AnomalyOverflow:      "OVERFLOW",
		AnomalyUnmappedCode:  "UNMAPPED_CODE",
		AnomalyShortFirmware: "SHORT_FIRMWARE",
		AnomalyType(42):      "UNKNOWN",
	}
	for a, want := range names {
		if a.String() != want {
			t.Errorf("Expected %s, got %s", want, a.String())
		}
	}
}

func TestStatistics_Update(t *testing.T) {
	stats := NewStatistics()

	records := []Record{
		{"V", "12800"},
		{"SER#", "X"},
		{"", "1"},
		{"V", "bad"},
		{"H19", "99999999999"},
		{"CS", "1"},
	}
	for _, r := range records {
		stats.Update(r, ValidateRecord(r))
	}
	stats.AddBytes(120)
	stats.AddBytes(-5)
	stats.ChecksumFrame()
	stats.StaleReset()

	snap := stats.Snapshot()
	if snap.TotalRecords != 6 || snap.ValidRecords != 1 {
		t.Errorf("Expected 6 total / 1 valid, got %d / %d", snap.TotalRecords, snap.ValidRecords)
	}
	if snap.UnknownLabels != 1 || snap.EmptyLabels != 1 {
		t.Errorf("Expected 1 unknown and 1 empty label, got %d / %d", snap.UnknownLabels, snap.EmptyLabels)
	}
	if snap.Anomalies != 3 {
		t.Errorf("Expected 3 anomalies, got %d", snap.Anomalies)
	}
	if stats.NonNumeric != 1 || stats.Overflows != 1 || stats.UnmappedCodes != 1 {
		t.Errorf("Unexpected anomaly breakdown: %d/%d/%d", stats.NonNumeric, stats.Overflows, stats.UnmappedCodes)
	}
	if snap.Bytes != 120 || snap.ChecksumFrames != 1 || snap.StaleResets != 1 {
		t.Errorf("Unexpected link counters: %+v", snap)
	}

	summary := stats.String()
	for _, want := range []string{"Total Records:", "Stale Resets:", "Overflow:", "Unmapped codes:"} {
		if !strings.Contains(summary, want) {
			t.Errorf("Summary missing %q:\n%s", want, summary)
		}
	}

	stats.Reset()
	if snap := stats.Snapshot(); snap.TotalRecords != 0 || snap.Bytes != 0 || snap.Anomalies != 0 {
		t.Errorf("Reset left counters: %+v", snap)
	}
}

func TestFormatRecord(t *testing.T) {
	tests := []struct {
		name   string
		record Record
		want   []string
	}{
		{"voltage", Record{"V", "12840"}, []string{"12:00:00.000", "V", "Battery Voltage:", "12.840 V"}},
		{"charging mode", Record{"CS", "3"}, []string{"Charging Mode:", "Bulk"}},
		{"load", Record{"LOAD", "ON"}, []string{"Load Output State:", "ON"}},
		{"unknown", Record{"SER#", "HQ1"}, []string{"(unknown label)"}},
		{"unknown pid", Record{"PID", "0xFFFF"}, []string{"(no value)"}},
		{"control bytes", Record{"X\x01", "a\rb"}, []string{`X\x01`, `a\rb`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := FormatRecord(tt.record, epoch)
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("Output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestFormatReading(t *testing.T) {
	tests := []struct {
		reading Reading
		want    string
	}{
		{numberReading(OutputPanelVoltage, 24.5), "24.500 V"},
		{numberReading(OutputACOutVoltage, 230), "230.00 V"},
		{numberReading(OutputACOutCurrent, 1.5), "1.5 A"},
		{numberReading(OutputYieldTotal, 12340), "12340 Wh"},
		{numberReading(OutputChargingModeID, 3), "3"},
		{textReading(OutputDeviceType, "SmartShunt"), "SmartShunt"},
		{binaryReading(OutputLoadOutputState, false), "OFF"},
	}

	for _, tt := range tests {
		t.Run(tt.reading.Output.Key(), func(t *testing.T) {
			if got := FormatReading(tt.reading); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}
