// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import "fmt"

// AnomalyType represents different kinds of suspicious records
type AnomalyType int

const (
	AnomalyEmptyLabel AnomalyType = iota
	AnomalyUnknownLabel
	AnomalyNonNumeric
	AnomalyOverflow
	AnomalyUnmappedCode
	AnomalyShortFirmware
)

// String implements fmt.Stringer
func (a AnomalyType) String() string {
	switch a {
	case AnomalyEmptyLabel:
		return "EMPTY_LABEL"
	case AnomalyUnknownLabel:
		return "UNKNOWN_LABEL"
	case AnomalyNonNumeric:
		return "NON_NUMERIC"
	case AnomalyOverflow:
		return "OVERFLOW"
	case AnomalyUnmappedCode:
		return "UNMAPPED_CODE"
	case AnomalyShortFirmware:
		return "SHORT_FIRMWARE"
	default:
		return "UNKNOWN"
	}
}

// ValidationError describes one anomaly found in a record.
// Anomalies are diagnostics; the decoder handles every record regardless.
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateRecord inspects a record and reports anomalies (empty if none)
func ValidateRecord(r Record) []ValidationError {
	errors := []ValidationError{}

	if r.Label == "" {
		return append(errors, ValidationError{
			Type:    AnomalyEmptyLabel,
			Message: "Frame has an empty label",
			Details: map[string]interface{}{"value": r.Value},
		})
	}

	f, ok := LookupField(r.Label)
	if !ok {
		return append(errors, ValidationError{
			Type:    AnomalyUnknownLabel,
			Message: fmt.Sprintf("Unknown label %q", r.Label),
			Details: map[string]interface{}{"label": r.Label, "value": r.Value},
		})
	}

	switch f {
	case FieldFW:
		if len(r.Value) < 2 {
			errors = append(errors, ValidationError{
				Type:    AnomalyShortFirmware,
				Message: fmt.Sprintf("Firmware value %q too short", r.Value),
				Details: map[string]interface{}{"value": r.Value},
			})
		}
		return errors

	case FieldLOAD:
		return errors

	case FieldPID:
		code := ParseInteger(r.Value)
		if !knownCode(f, code) {
			errors = append(errors, ValidationError{
				Type:    AnomalyUnmappedCode,
				Message: fmt.Sprintf("Unrecognized product ID %q", r.Value),
				Details: map[string]interface{}{"label": r.Label, "code": code},
			})
		}
		return errors
	}

	code, strict := parseStrictDecimal(r.Value)
	if !strict {
		anomaly := AnomalyNonNumeric
		msg := fmt.Sprintf("%s value %q is not a decimal integer", r.Label, r.Value)
		if decimalOverflows(r.Value) {
			anomaly = AnomalyOverflow
			msg = fmt.Sprintf("%s value %q exceeds 32-bit range", r.Label, r.Value)
		}
		errors = append(errors, ValidationError{
			Type:    anomaly,
			Message: msg,
			Details: map[string]interface{}{"label": r.Label, "value": r.Value, "parsed": ParseDecimal(r.Value)},
		})
		return errors
	}

	if !knownCode(f, code) {
		errors = append(errors, ValidationError{
			Type:    AnomalyUnmappedCode,
			Message: fmt.Sprintf("%s code %d has no name", r.Label, code),
			Details: map[string]interface{}{"label": r.Label, "code": code},
		})
	}

	return errors
}
