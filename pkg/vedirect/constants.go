// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package vedirect decodes the Victron VE.Direct text protocol.
//
// VE.Direct devices (solar charge controllers, inverters, battery monitors)
// periodically emit blocks of tab-separated label/value lines terminated by a
// checksum line. This package tokenizes the raw byte stream into records,
// maps known labels to typed readings, and publishes them to optional sinks.
//
// The HEX command protocol is not supported.
package vedirect

import "time"

// Protocol framing bytes
const (
	CR  = '\r'
	LF  = '\n'
	Tab = '\t'
)

// ChecksumLabel marks the terminal frame of a block. Its value is a single
// binary byte and is never parsed.
const ChecksumLabel = "Checksum"

// Link parameters
const (
	BaudRate     = 19200
	StaleTimeout = 200 * time.Millisecond
	PollInterval = 20 * time.Millisecond
)

// Tokenizer states (internal)
const (
	stateIdle = iota
	stateLabel
	stateValue
)

// Int32 bounds used when saturating parsed integers
const (
	maxInt32 = 1<<31 - 1
	minInt32 = -1 << 31
)
