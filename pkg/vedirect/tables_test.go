// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import "testing"

func TestTables_Fallbacks(t *testing.T) {
	tests := []struct {
		name string
		fn   func(int) string
		want string
	}{
		{"charging mode", ChargingModeText, UnknownText},
		{"error code", ErrorCodeText, UnknownText},
		{"warning code", WarningCodeText, MultipleWarningText},
		{"tracking mode", TrackingModeText, UnknownText},
		{"device mode", DeviceModeText, UnknownText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, code := range []int{-1, 1 << 20, maxInt32} {
				if got := tt.fn(code); got != tt.want {
					t.Errorf("code %d: expected %q, got %q", code, tt.want, got)
				}
			}
		})
	}
}

func TestTables_WarningBits(t *testing.T) {
	for bit := 0; bit <= 11; bit++ {
		code := 1 << bit
		if got := WarningCodeText(code); got == MultipleWarningText {
			t.Errorf("Single warning bit %d should have a name", code)
		}
	}
	if got := WarningCodeText(1 | 2); got != MultipleWarningText {
		t.Errorf("Combined bits should report %q, got %q", MultipleWarningText, got)
	}
}

func TestTables_DeviceType(t *testing.T) {
	if name, ok := DeviceTypeText(0xA389); !ok || name != "SmartShunt" {
		t.Errorf("Expected SmartShunt, got (%q, %v)", name, ok)
	}
	if _, ok := DeviceTypeText(0xFFFF); ok {
		t.Error("0xFFFF should be unmapped")
	}
	if _, ok := DeviceTypeText(0); ok {
		t.Error("0 should be unmapped")
	}
}

func TestTables_KnownCode(t *testing.T) {
	tests := []struct {
		field Field
		code  int
		want  bool
	}{
		{FieldCS, 3, true},
		{FieldCS, 1, false},
		{FieldERR, 0, true},
		{FieldWARN, 3, false},
		{FieldMPPT, 2, true},
		{FieldMODE, 3, false},
		{FieldPID, 0xA389, true},
		{FieldV, -99999, true},
	}

	for _, tt := range tests {
		t.Run(tt.field.String(), func(t *testing.T) {
			if got := knownCode(tt.field, tt.code); got != tt.want {
				t.Errorf("knownCode(%s, %d) = %v, expected %v", tt.field, tt.code, got, tt.want)
			}
		})
	}
}

func TestFields_LookupRoundTrip(t *testing.T) {
	for label, f := range fieldLabels {
		got, ok := LookupField(label)
		if !ok || got != f {
			t.Errorf("LookupField(%q) = (%s, %v)", label, got, ok)
		}
		if f.Label() != label {
			t.Errorf("%d.Label() = %q, expected %q", int(f), f.Label(), label)
		}
	}
	if FieldUnknown.String() != "UNKNOWN" {
		t.Errorf("Expected UNKNOWN, got %q", FieldUnknown.String())
	}
}

func TestOutputs_Metadata(t *testing.T) {
	outputs := Outputs()
	if len(outputs) != 26 {
		t.Fatalf("Expected 26 outputs, got %d", len(outputs))
	}

	seen := map[string]bool{}
	latched := 0
	for _, o := range outputs {
		if o.Key() == "" || o.Name() == "" {
			t.Errorf("Output %d has no key or name", int(o))
		}
		if seen[o.Key()] {
			t.Errorf("Duplicate key %q", o.Key())
		}
		seen[o.Key()] = true

		got, ok := LookupOutput(o.Key())
		if !ok || got != o {
			t.Errorf("LookupOutput(%q) = (%s, %v)", o.Key(), got, ok)
		}
		if o.LatchOnce() {
			latched++
		}
	}

	if latched != 3 {
		t.Errorf("Expected 3 latch-once outputs, got %d", latched)
	}
	if _, ok := LookupOutput("no_such_output"); ok {
		t.Error("Unknown key should not resolve")
	}
	if Output(-1).Key() != "unknown" || Output(99).Name() != "Unknown" {
		t.Error("Out-of-range outputs should report unknown")
	}
	if OutputLoadOutputState.Kind() != KindBinary || OutputDeviceType.Kind() != KindText || OutputYieldTotal.Kind() != KindNumeric {
		t.Error("Unexpected output kinds")
	}
}
