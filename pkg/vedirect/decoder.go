// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import (
	"math"

	"github.com/rs/zerolog"
)

// Decode maps a record to its typed readings.
// Unknown labels produce no readings.
func Decode(r Record) []Reading {
	f, ok := LookupField(r.Label)
	if !ok {
		return nil
	}
	return DecodeField(f, r.Value)
}

// DecodeField maps the raw value of a known field to its typed readings
func DecodeField(f Field, value string) []Reading {
	switch f {
	case FieldH23:
		return []Reading{numberReading(OutputMaxPowerYesterday, float64(ParseDecimal(value)))}
	case FieldH21:
		return []Reading{numberReading(OutputMaxPowerToday, float64(ParseDecimal(value)))}
	case FieldH19:
		return []Reading{numberReading(OutputYieldTotal, float64(ParseDecimal(value))*10)}
	case FieldH22:
		return []Reading{numberReading(OutputYieldYesterday, float64(ParseDecimal(value))*10)}
	case FieldH20:
		return []Reading{numberReading(OutputYieldToday, float64(ParseDecimal(value))*10)}
	case FieldVPV:
		return []Reading{numberReading(OutputPanelVoltage, float64(ParseDecimal(value))/1000.0)}
	case FieldPPV:
		return []Reading{numberReading(OutputPanelPower, float64(ParseDecimal(value)))}
	case FieldV:
		return []Reading{numberReading(OutputBatteryVoltage, float64(ParseDecimal(value))/1000.0)}
	case FieldI:
		return []Reading{numberReading(OutputBatteryCurrent, float64(ParseDecimal(value))/1000.0)}
	case FieldACOutV:
		return []Reading{numberReading(OutputACOutVoltage, float64(ParseDecimal(value))/100.0)}
	case FieldACOutI:
		return []Reading{numberReading(OutputACOutCurrent, math.Max(0.0, float64(ParseDecimal(value))/10.0))}
	case FieldIL:
		return []Reading{numberReading(OutputLoadCurrent, float64(ParseDecimal(value))/1000.0)}
	case FieldHSDS:
		return []Reading{numberReading(OutputDayNumber, float64(ParseDecimal(value)))}

	case FieldCS:
		code := ParseDecimal(value)
		return []Reading{
			numberReading(OutputChargingModeID, float64(code)),
			textReading(OutputChargingMode, ChargingModeText(code)),
		}
	case FieldERR:
		code := ParseDecimal(value)
		return []Reading{
			numberReading(OutputErrorCode, float64(code)),
			textReading(OutputErrorText, ErrorCodeText(code)),
		}
	case FieldWARN:
		code := ParseDecimal(value)
		return []Reading{
			numberReading(OutputWarningCode, float64(code)),
			textReading(OutputWarningText, WarningCodeText(code)),
		}
	case FieldMPPT:
		code := ParseDecimal(value)
		return []Reading{
			numberReading(OutputTrackingModeID, float64(code)),
			textReading(OutputTrackingMode, TrackingModeText(code)),
		}
	case FieldMODE:
		code := ParseDecimal(value)
		return []Reading{
			numberReading(OutputDeviceModeID, float64(code)),
			textReading(OutputDeviceMode, DeviceModeText(code)),
		}

	case FieldFW:
		version, ok := FirmwareVersion(value)
		if !ok {
			return nil
		}
		return []Reading{textReading(OutputFirmwareVersion, version)}
	case FieldLOAD:
		return []Reading{binaryReading(OutputLoadOutputState, value == "ON")}
	case FieldPID:
		name, ok := DeviceTypeText(ParseInteger(value))
		if !ok {
			return nil
		}
		return []Reading{textReading(OutputDeviceType, name)}
	}
	return nil
}

// FirmwareVersion inserts a decimal point two characters before the end of
// the raw FW value, e.g. "150" becomes "1.50". Values shorter than two
// characters cannot be formatted and report false.
func FirmwareVersion(raw string) (string, bool) {
	if len(raw) < 2 {
		return "", false
	}
	cut := len(raw) - 2
	return raw[:cut] + "." + raw[cut:], true
}

// Decoder publishes decoded readings to the configured sinks.
// It implements RecordHandler and is meant to be driven by a Tokenizer.
type Decoder struct {
	sinks     *Sinks
	log       zerolog.Logger
	onPublish func(Reading)
	onUnknown func(Record)
}

// DecoderOption configures a Decoder
type DecoderOption func(*Decoder)

// WithDecoderLogger sets the logger used for debug output
func WithDecoderLogger(l zerolog.Logger) DecoderOption {
	return func(d *Decoder) {
		d.log = l
	}
}

// WithPublishHook registers a callback invoked after each reading reaches a sink
func WithPublishHook(fn func(Reading)) DecoderOption {
	return func(d *Decoder) {
		d.onPublish = fn
	}
}

// WithUnknownHook registers a callback invoked for records with unknown labels
func WithUnknownHook(fn func(Record)) DecoderOption {
	return func(d *Decoder) {
		d.onUnknown = fn
	}
}

// NewDecoder creates a decoder publishing into sinks (nil means no sinks)
func NewDecoder(sinks *Sinks, opts ...DecoderOption) *Decoder {
	if sinks == nil {
		sinks = NewSinks()
	}
	d := &Decoder{
		sinks: sinks,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Sinks returns the sink registry the decoder publishes into
func (d *Decoder) Sinks() *Sinks {
	return d.sinks
}

// HandleRecord decodes r and publishes its readings
func (d *Decoder) HandleRecord(r Record) {
	f, ok := LookupField(r.Label)
	if !ok {
		d.log.Debug().Str("label", r.Label).Str("value", r.Value).Msg("Ignoring unknown label")
		if d.onUnknown != nil {
			d.onUnknown(r)
		}
		return
	}
	d.Publish(DecodeField(f, r.Value))
}

// Publish delivers readings to their sinks and returns how many were delivered.
// Readings without a configured sink are skipped, and latch-once outputs are
// skipped once their sink holds a value.
func (d *Decoder) Publish(readings []Reading) int {
	published := 0
	for _, r := range readings {
		if !d.publish(r) {
			continue
		}
		published++
		if d.onPublish != nil {
			d.onPublish(r)
		}
	}
	return published
}

func (d *Decoder) publish(r Reading) bool {
	switch r.Output.Kind() {
	case KindNumeric:
		sink := d.sinks.Numeric(r.Output)
		if sink == nil {
			return false
		}
		sink.PublishNumber(r.Number)

	case KindText:
		sink := d.sinks.Text(r.Output)
		if sink == nil {
			return false
		}
		if r.Output.LatchOnce() && sink.HasState() {
			return false
		}
		sink.PublishText(r.Text)

	case KindBinary:
		sink := d.sinks.Binary(r.Output)
		if sink == nil {
			return false
		}
		if r.Output.LatchOnce() && sink.HasState() {
			return false
		}
		sink.PublishBinary(r.State)

	default:
		return false
	}
	return true
}
