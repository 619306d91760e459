// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

// Fallback names for unmapped codes
const (
	UnknownText         = "Unknown"
	MultipleWarningText = "Multiple warnings"
)

var chargingModeNames = map[int]string{
	0:   "Off",
	2:   "Fault",
	3:   "Bulk",
	4:   "Absorption",
	5:   "Float",
	7:   "Equalize (manual)",
	9:   "Inverting",
	245: "Starting-up",
	247: "Auto equalize / Recondition",
	252: "External control",
}

var errorCodeNames = map[int]string{
	0:   "No error",
	2:   "Battery voltage too high",
	17:  "Charger temperature too high",
	18:  "Charger over current",
	19:  "Charger current reversed",
	20:  "Bulk time limit exceeded",
	21:  "Current sensor issue",
	26:  "Terminals overheated",
	28:  "Converter issue",
	33:  "Input voltage too high (solar panel)",
	34:  "Input current too high (solar panel)",
	38:  "Input shutdown (excessive battery voltage)",
	39:  "Input shutdown (due to current flow during off mode)",
	65:  "Lost communication with one of devices",
	66:  "Synchronised charging device configuration issue",
	67:  "BMS connection lost",
	68:  "Network misconfigured",
	116: "Factory calibration data lost",
	117: "Invalid/incompatible firmware",
	119: "User settings invalid",
}

// Warning codes are single bits of an alarm bitmask. Combinations are not
// decomposed and report MultipleWarningText.
var warningCodeNames = map[int]string{
	0:    "No warning",
	1:    "Low Voltage",
	2:    "High Voltage",
	4:    "Low SOC",
	8:    "Low Starter Voltage",
	16:   "High Starter Voltage",
	32:   "Low Temperature",
	64:   "High Temperature",
	128:  "Mid Voltage",
	256:  "Overload",
	512:  "DC-ripple",
	1024: "Low V AC out",
	2048: "High V AC out",
}

var trackingModeNames = map[int]string{
	0: "Off",
	1: "Limited",
	2: "Active",
}

var deviceModeNames = map[int]string{
	0: "Off",
	2: "On",
	4: "Off",
	5: "Eco",
}

var deviceTypeNames = map[int]string{
	// Battery monitors
	0x203:  "BMV-700",
	0x204:  "BMV-702",
	0x205:  "BMV-700H",
	0xA389: "SmartShunt",
	0xA381: "BMV-712 Smart",

	// BlueSolar MPPT
	0xA04C: "BlueSolar MPPT 75/10",
	0x300:  "BlueSolar MPPT 70/15",
	0xA042: "BlueSolar MPPT 75/15",
	0xA043: "BlueSolar MPPT 100/15",
	0xA044: "BlueSolar MPPT 100/30 rev1",
	0xA04A: "BlueSolar MPPT 100/30 rev2",
	0xA041: "BlueSolar MPPT 150/35 rev1",
	0xA04B: "BlueSolar MPPT 150/35 rev2",
	0xA04D: "BlueSolar MPPT 150/45",
	0xA040: "BlueSolar MPPT 75/50",
	0xA045: "BlueSolar MPPT 100/50 rev1",
	0xA049: "BlueSolar MPPT 100/50 rev2",
	0xA04E: "BlueSolar MPPT 150/60",
	0xA046: "BlueSolar MPPT 150/70",
	0xA04F: "BlueSolar MPPT 150/85",
	0xA047: "BlueSolar MPPT 150/100",

	// SmartSolar MPPT
	0xA050: "SmartSolar MPPT 250/100",
	0xA051: "SmartSolar MPPT 150/100",
	0xA052: "SmartSolar MPPT 150/85",
	0xA053: "SmartSolar MPPT 75/15",
	0xA054: "SmartSolar MPPT 75/10",
	0xA055: "SmartSolar MPPT 100/15",
	0xA056: "SmartSolar MPPT 100/30",
	0xA057: "SmartSolar MPPT 100/50",
	0xA058: "SmartSolar MPPT 150/35",
	0xA059: "SmartSolar MPPT 150/100 rev2",
	0xA05A: "SmartSolar MPPT 150/85 rev2",
	0xA05B: "SmartSolar MPPT 250/70",
	0xA05C: "SmartSolar MPPT 250/85",
	0xA05D: "SmartSolar MPPT 250/60",
	0xA05E: "SmartSolar MPPT 250/45",
	0xA05F: "SmartSolar MPPT 100/20",
	0xA060: "SmartSolar MPPT 100/20 48V",
	0xA061: "SmartSolar MPPT 150/45",
	0xA062: "SmartSolar MPPT 150/60",
	0xA063: "SmartSolar MPPT 150/70",
	0xA064: "SmartSolar MPPT 250/85 rev2",
	0xA065: "SmartSolar MPPT 250/100 rev2",

	// Phoenix Inverter
	0xA201: "Phoenix Inverter 12V 250VA 230V",
	0xA202: "Phoenix Inverter 24V 250VA 230V",
	0xA204: "Phoenix Inverter 48V 250VA 230V",
	0xA211: "Phoenix Inverter 12V 375VA 230V",
	0xA212: "Phoenix Inverter 24V 375VA 230V",
	0xA214: "Phoenix Inverter 48V 375VA 230V",
	0xA221: "Phoenix Inverter 12V 500VA 230V",
	0xA222: "Phoenix Inverter 24V 500VA 230V",
	0xA224: "Phoenix Inverter 48V 500VA 230V",
	0xA231: "Phoenix Inverter 12V 250VA 230V",
	0xA232: "Phoenix Inverter 24V 250VA 230V",
	0xA234: "Phoenix Inverter 48V 250VA 230V",
	0xA239: "Phoenix Inverter 12V 250VA 120V",
	0xA23A: "Phoenix Inverter 24V 250VA 120V",
	0xA23C: "Phoenix Inverter 48V 250VA 120V",
	0xA241: "Phoenix Inverter 12V 375VA 230V",
	0xA242: "Phoenix Inverter 24V 375VA 230V",
	0xA244: "Phoenix Inverter 48V 375VA 230V",
	0xA249: "Phoenix Inverter 12V 375VA 120V",
	0xA24A: "Phoenix Inverter 24V 375VA 120V",
	0xA24C: "Phoenix Inverter 48V 375VA 120V",
	0xA251: "Phoenix Inverter 12V 500VA 230V",
	0xA252: "Phoenix Inverter 24V 500VA 230V",
	0xA254: "Phoenix Inverter 48V 500VA 230V",
	0xA259: "Phoenix Inverter 12V 500VA 120V",
	0xA25A: "Phoenix Inverter 24V 500VA 120V",
	0xA25C: "Phoenix Inverter 48V 500VA 120V",
	0xA261: "Phoenix Inverter 12V 800VA 230V",
	0xA262: "Phoenix Inverter 24V 800VA 230V",
	0xA264: "Phoenix Inverter 48V 800VA 230V",
	0xA269: "Phoenix Inverter 12V 800VA 120V",
	0xA26A: "Phoenix Inverter 24V 800VA 120V",
	0xA26C: "Phoenix Inverter 48V 800VA 120V",
	0xA271: "Phoenix Inverter 12V 1200VA 230V",
	0xA272: "Phoenix Inverter 24V 1200VA 230V",
	0xA274: "Phoenix Inverter 48V 1200VA 230V",
	0xA279: "Phoenix Inverter 12V 1200VA 120V",
	0xA27A: "Phoenix Inverter 24V 1200VA 120V",
	0xA27C: "Phoenix Inverter 48V 1200VA 120V",
}

func lookup(table map[int]string, code int, fallback string) string {
	if name, ok := table[code]; ok {
		return name
	}
	return fallback
}

// ChargingModeText returns the name of a CS (state of operation) code
func ChargingModeText(code int) string {
	return lookup(chargingModeNames, code, UnknownText)
}

// ErrorCodeText returns the description of an ERR code
func ErrorCodeText(code int) string {
	return lookup(errorCodeNames, code, UnknownText)
}

// WarningCodeText returns the description of a WARN code.
// Unmapped values, including bit combinations, report "Multiple warnings".
func WarningCodeText(code int) string {
	return lookup(warningCodeNames, code, MultipleWarningText)
}

// TrackingModeText returns the name of an MPPT tracker mode
func TrackingModeText(code int) string {
	return lookup(trackingModeNames, code, UnknownText)
}

// DeviceModeText returns the name of a MODE code
func DeviceModeText(code int) string {
	return lookup(deviceModeNames, code, UnknownText)
}

// DeviceTypeText returns the product name for a PID.
// Unrecognized products report false and have no name.
func DeviceTypeText(pid int) (string, bool) {
	name, ok := deviceTypeNames[pid]
	return name, ok
}

// knownCode reports whether code has an explicit entry in the table used by field
func knownCode(f Field, code int) bool {
	var table map[int]string
	switch f {
	case FieldCS:
		table = chargingModeNames
	case FieldERR:
		table = errorCodeNames
	case FieldWARN:
		table = warningCodeNames
	case FieldMPPT:
		table = trackingModeNames
	case FieldMODE:
		table = deviceModeNames
	case FieldPID:
		table = deviceTypeNames
	default:
		return true
	}
	_, ok := table[code]
	return ok
}
