// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

// Field identifies a known VE.Direct label
type Field int

// Known labels
const (
	FieldUnknown Field = iota
	FieldH23           // Maximum power yesterday (W)
	FieldH21           // Maximum power today (W)
	FieldH19           // Yield total (0.01 kWh)
	FieldH22           // Yield yesterday (0.01 kWh)
	FieldH20           // Yield today (0.01 kWh)
	FieldVPV           // Panel voltage (mV)
	FieldPPV           // Panel power (W)
	FieldV             // Battery voltage (mV)
	FieldI             // Battery current (mA)
	FieldACOutV        // AC output voltage (0.01 V)
	FieldACOutI        // AC output current (0.1 A)
	FieldIL            // Load current (mA)
	FieldHSDS          // Day sequence number
	FieldCS            // State of operation
	FieldERR           // Error code
	FieldWARN          // Warning reason
	FieldMPPT          // Tracker operation mode
	FieldMODE          // Device mode
	FieldFW            // Firmware version
	FieldLOAD          // Load output state
	FieldPID           // Product ID
)

var fieldLabels = map[string]Field{
	"H23":      FieldH23,
	"H21":      FieldH21,
	"H19":      FieldH19,
	"H22":      FieldH22,
	"H20":      FieldH20,
	"VPV":      FieldVPV,
	"PPV":      FieldPPV,
	"V":        FieldV,
	"I":        FieldI,
	"AC_OUT_V": FieldACOutV,
	"AC_OUT_I": FieldACOutI,
	"IL":       FieldIL,
	"HSDS":     FieldHSDS,
	"CS":       FieldCS,
	"ERR":      FieldERR,
	"WARN":     FieldWARN,
	"MPPT":     FieldMPPT,
	"MODE":     FieldMODE,
	"FW":       FieldFW,
	"LOAD":     FieldLOAD,
	"PID":      FieldPID,
}

// LookupField resolves a label to its Field
func LookupField(label string) (Field, bool) {
	f, ok := fieldLabels[label]
	return f, ok
}

// Label returns the wire label for f
func (f Field) Label() string {
	for label, field := range fieldLabels {
		if field == f {
			return label
		}
	}
	return ""
}

// String implements fmt.Stringer
func (f Field) String() string {
	if label := f.Label(); label != "" {
		return label
	}
	return "UNKNOWN"
}

// Kind is the value type carried by an output
type Kind int

// Output kinds
const (
	KindNumeric Kind = iota
	KindText
	KindBinary
)

// String implements fmt.Stringer
func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindText:
		return "text"
	case KindBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Output identifies a typed destination for decoded values
type Output int

// Numeric outputs
const (
	OutputMaxPowerYesterday Output = iota
	OutputMaxPowerToday
	OutputYieldTotal
	OutputYieldYesterday
	OutputYieldToday
	OutputPanelVoltage
	OutputPanelPower
	OutputBatteryVoltage
	OutputBatteryCurrent
	OutputACOutVoltage
	OutputACOutCurrent
	OutputLoadCurrent
	OutputDayNumber
	OutputChargingModeID
	OutputErrorCode
	OutputWarningCode
	OutputTrackingModeID
	OutputDeviceModeID

	// Text outputs
	OutputChargingMode
	OutputErrorText
	OutputWarningText
	OutputTrackingMode
	OutputDeviceMode
	OutputFirmwareVersion
	OutputDeviceType

	// Binary outputs
	OutputLoadOutputState

	outputCount
)

type outputInfo struct {
	key   string
	name  string
	unit  string
	kind  Kind
	latch bool
}

var outputInfos = [outputCount]outputInfo{
	OutputMaxPowerYesterday: {"max_power_yesterday", "Max Power Yesterday", "W", KindNumeric, false},
	OutputMaxPowerToday:     {"max_power_today", "Max Power Today", "W", KindNumeric, false},
	OutputYieldTotal:        {"yield_total", "Yield Total", "Wh", KindNumeric, false},
	OutputYieldYesterday:    {"yield_yesterday", "Yield Yesterday", "Wh", KindNumeric, false},
	OutputYieldToday:        {"yield_today", "Yield Today", "Wh", KindNumeric, false},
	OutputPanelVoltage:      {"panel_voltage", "Panel Voltage", "V", KindNumeric, false},
	OutputPanelPower:        {"panel_power", "Panel Power", "W", KindNumeric, false},
	OutputBatteryVoltage:    {"battery_voltage", "Battery Voltage", "V", KindNumeric, false},
	OutputBatteryCurrent:    {"battery_current", "Battery Current", "A", KindNumeric, false},
	OutputACOutVoltage:      {"ac_out_voltage", "AC Out Voltage", "V", KindNumeric, false},
	OutputACOutCurrent:      {"ac_out_current", "AC Out Current", "A", KindNumeric, false},
	OutputLoadCurrent:       {"load_current", "Load Current", "A", KindNumeric, false},
	OutputDayNumber:         {"day_number", "Day Number", "d", KindNumeric, false},
	OutputChargingModeID:    {"charging_mode_id", "Charging Mode ID", "", KindNumeric, false},
	OutputErrorCode:         {"error_code", "Error Code", "", KindNumeric, false},
	OutputWarningCode:       {"warning_code", "Warning Code", "", KindNumeric, false},
	OutputTrackingModeID:    {"tracking_mode_id", "Tracking Mode ID", "", KindNumeric, false},
	OutputDeviceModeID:      {"device_mode_id", "Device Mode ID", "", KindNumeric, false},
	OutputChargingMode:      {"charging_mode", "Charging Mode", "", KindText, false},
	OutputErrorText:         {"error_text", "Error Text", "", KindText, false},
	OutputWarningText:       {"warning_text", "Warning Text", "", KindText, false},
	OutputTrackingMode:      {"tracking_mode", "Tracking Mode", "", KindText, false},
	OutputDeviceMode:        {"device_mode", "Device Mode", "", KindText, false},
	OutputFirmwareVersion:   {"firmware_version", "Firmware Version", "", KindText, true},
	OutputDeviceType:        {"device_type", "Device Type", "", KindText, true},
	OutputLoadOutputState:   {"load_output_state", "Load Output State", "", KindBinary, true},
}

func (o Output) info() outputInfo {
	if o < 0 || o >= outputCount {
		return outputInfo{key: "unknown", name: "Unknown"}
	}
	return outputInfos[o]
}

// Key returns the configuration key, e.g. "battery_voltage"
func (o Output) Key() string { return o.info().key }

// Name returns the display name, e.g. "Battery Voltage"
func (o Output) Name() string { return o.info().name }

// Unit returns the unit of measurement (empty for enumerations and text)
func (o Output) Unit() string { return o.info().unit }

// Kind returns the value type of the output
func (o Output) Kind() Kind { return o.info().kind }

// LatchOnce reports whether the output is published at most once per session
func (o Output) LatchOnce() bool { return o.info().latch }

// String implements fmt.Stringer
func (o Output) String() string { return o.Key() }

// Outputs returns every output in declaration order
func Outputs() []Output {
	out := make([]Output, 0, outputCount)
	for o := Output(0); o < outputCount; o++ {
		out = append(out, o)
	}
	return out
}

// LookupOutput resolves a configuration key to its Output
func LookupOutput(key string) (Output, bool) {
	for o := Output(0); o < outputCount; o++ {
		if outputInfos[o].key == key {
			return o, true
		}
	}
	return 0, false
}

// Reading is one typed value produced by the field decoder
type Reading struct {
	Output Output
	Number float64
	Text   string
	State  bool
}

// Value returns the reading's payload as float64, string or bool
func (r Reading) Value() interface{} {
	switch r.Output.Kind() {
	case KindText:
		return r.Text
	case KindBinary:
		return r.State
	default:
		return r.Number
	}
}

func numberReading(o Output, v float64) Reading {
	return Reading{Output: o, Number: v}
}

func textReading(o Output, v string) Reading {
	return Reading{Output: o, Text: v}
}

func binaryReading(o Output, v bool) Reading {
	return Reading{Output: o, State: v}
}
