// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import (
	"time"

	"github.com/rs/zerolog"
)

// Tokenizer implements the VE.Direct frame state machine.
//
// A Tokenizer is the stream session for one connection: it owns the partial
// label and value buffers and the time of the last observed activity. It is
// not safe for concurrent use; confine it to the polling goroutine.
type Tokenizer struct {
	state        int
	label        []byte
	value        []byte
	lastActivity time.Time
	timeout      time.Duration

	handler    RecordHandler
	onChecksum func()
	onStale    func(partial Record, idle time.Duration)
	log        zerolog.Logger
}

// TokenizerOption configures a Tokenizer
type TokenizerOption func(*Tokenizer)

// WithStaleTimeout overrides the inactivity window for an in-progress frame
func WithStaleTimeout(d time.Duration) TokenizerOption {
	return func(t *Tokenizer) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithLogger sets the logger used for staleness warnings
func WithLogger(l zerolog.Logger) TokenizerOption {
	return func(t *Tokenizer) {
		t.log = l
	}
}

// WithChecksumHandler registers a callback invoked for every discarded checksum frame
func WithChecksumHandler(fn func()) TokenizerOption {
	return func(t *Tokenizer) {
		t.onChecksum = fn
	}
}

// WithStaleHandler registers a callback invoked after a staleness reset
// with the discarded partial frame and the observed idle time
func WithStaleHandler(fn func(partial Record, idle time.Duration)) TokenizerOption {
	return func(t *Tokenizer) {
		t.onStale = fn
	}
}

// NewTokenizer creates a tokenizer that dispatches completed records to handler
func NewTokenizer(handler RecordHandler, opts ...TokenizerOption) *Tokenizer {
	t := &Tokenizer{
		state:   stateIdle,
		label:   make([]byte, 0, 16),
		value:   make([]byte, 0, 40),
		timeout: StaleTimeout,
		handler: handler,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Reset discards any partial frame and returns to idle
func (t *Tokenizer) Reset() {
	t.state = stateIdle
	t.label = t.label[:0]
	t.value = t.value[:0]
}

// InFrame reports whether a frame is partially collected
func (t *Tokenizer) InFrame() bool {
	return t.state != stateIdle
}

// State returns the current state name
func (t *Tokenizer) State() string {
	switch t.state {
	case stateLabel:
		return "LABEL"
	case stateValue:
		return "VALUE"
	default:
		return "IDLE"
	}
}

// Timeout returns the staleness window
func (t *Tokenizer) Timeout() time.Duration {
	return t.timeout
}

// DecodeByte processes a single byte through the state machine.
// Returns the completed record, or nil if no frame completed on this byte.
// Staleness is not evaluated here; see Poll.
func (t *Tokenizer) DecodeByte(b byte) *Record {
	switch t.state {
	case stateIdle:
		if b == CR || b == LF {
			return nil
		}
		t.label = t.label[:0]
		t.value = t.value[:0]
		t.state = stateLabel
		t.decodeLabel(b)
		return nil

	case stateLabel:
		t.decodeLabel(b)
		return nil

	case stateValue:
		// The checksum value is one arbitrary byte, possibly CR, LF or Tab.
		if string(t.label) == ChecksumLabel {
			t.state = stateIdle
			if t.onChecksum != nil {
				t.onChecksum()
			}
			return nil
		}
		if b == CR || b == LF {
			r := &Record{Label: string(t.label), Value: string(t.value)}
			t.state = stateIdle
			return r
		}
		t.value = append(t.value, b)
		return nil

	default:
		t.Reset()
		return nil
	}
}

func (t *Tokenizer) decodeLabel(b byte) {
	if b == Tab {
		t.state = stateValue
		return
	}
	t.label = append(t.label, b)
}

// Poll drains every byte currently available from src.
//
// A frame left incomplete for longer than the staleness window is discarded
// before new input is processed. The activity timestamp is refreshed once per
// poll, when bytes are available. Completed records are dispatched to the
// handler synchronously. Only read errors from src are returned; framing
// anomalies are absorbed by resynchronizing.
func (t *Tokenizer) Poll(src ByteSource, now time.Time) (int, error) {
	t.checkStale(now)

	if src.Available() == 0 {
		return 0, nil
	}

	t.lastActivity = now
	n := 0
	for src.Available() > 0 {
		b, err := src.ReadByte()
		if err != nil {
			return n, err
		}
		n++
		if r := t.DecodeByte(b); r != nil && t.handler != nil {
			t.handler.HandleRecord(*r)
		}
	}
	return n, nil
}

func (t *Tokenizer) checkStale(now time.Time) {
	if t.state == stateIdle {
		return
	}
	idle := now.Sub(t.lastActivity)
	if idle < t.timeout {
		return
	}

	partial := Record{Label: string(t.label), Value: string(t.value)}
	t.log.Warn().
		Str("state", t.State()).
		Str("label", partial.Label).
		Dur("idle", idle).
		Msg("Last transmission too long ago, resetting frame")
	t.Reset()

	if t.onStale != nil {
		t.onStale(partial, idle)
	}
}
