// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import (
	"fmt"
	"sync"
	"time"
)

// NumericSink receives numeric readings
type NumericSink interface {
	PublishNumber(v float64)
}

// TextSink receives text readings
type TextSink interface {
	PublishText(v string)
	// HasState reports whether a value has been published at least once
	HasState() bool
}

// BinarySink receives boolean readings
type BinarySink interface {
	PublishBinary(v bool)
	// HasState reports whether a value has been published at least once
	HasState() bool
}

// Sinks holds the optional destination for each output.
// An output without a sink is not configured; its readings are dropped.
type Sinks struct {
	numeric map[Output]NumericSink
	text    map[Output]TextSink
	binary  map[Output]BinarySink
}

// NewSinks creates an empty registry
func NewSinks() *Sinks {
	return &Sinks{
		numeric: make(map[Output]NumericSink),
		text:    make(map[Output]TextSink),
		binary:  make(map[Output]BinarySink),
	}
}

// Register attaches sink to output o. The sink must implement the interface
// matching the output's kind.
func (s *Sinks) Register(o Output, sink interface{}) error {
	if o < 0 || o >= outputCount {
		return fmt.Errorf("unknown output %d", int(o))
	}
	switch o.Kind() {
	case KindNumeric:
		ns, ok := sink.(NumericSink)
		if !ok {
			return fmt.Errorf("output %s: %T does not implement NumericSink", o, sink)
		}
		s.numeric[o] = ns
	case KindText:
		ts, ok := sink.(TextSink)
		if !ok {
			return fmt.Errorf("output %s: %T does not implement TextSink", o, sink)
		}
		s.text[o] = ts
	case KindBinary:
		bs, ok := sink.(BinarySink)
		if !ok {
			return fmt.Errorf("output %s: %T does not implement BinarySink", o, sink)
		}
		s.binary[o] = bs
	}
	return nil
}

// Numeric returns the sink for a numeric output, or nil
func (s *Sinks) Numeric(o Output) NumericSink {
	return s.numeric[o]
}

// Text returns the sink for a text output, or nil
func (s *Sinks) Text(o Output) TextSink {
	return s.text[o]
}

// Binary returns the sink for a binary output, or nil
func (s *Sinks) Binary(o Output) BinarySink {
	return s.binary[o]
}

// Configured returns the outputs that have a sink, in declaration order
func (s *Sinks) Configured() []Output {
	var out []Output
	for _, o := range Outputs() {
		if s.has(o) {
			out = append(out, o)
		}
	}
	return out
}

func (s *Sinks) has(o Output) bool {
	switch o.Kind() {
	case KindNumeric:
		return s.numeric[o] != nil
	case KindText:
		return s.text[o] != nil
	case KindBinary:
		return s.binary[o] != nil
	}
	return false
}

// Sensor is an in-memory sink that keeps the latest value of one output.
// It implements NumericSink, TextSink and BinarySink and is safe for
// concurrent readers.
type Sensor struct {
	output Output

	mu        sync.RWMutex
	hasState  bool
	reading   Reading
	updated   time.Time
	count     uint64
	callbacks []func(Reading)
}

// NewSensor creates an empty sensor for output o
func NewSensor(o Output) *Sensor {
	return &Sensor{output: o, reading: Reading{Output: o}}
}

// Output returns the output this sensor represents
func (s *Sensor) Output() Output {
	return s.output
}

// OnState registers a callback invoked after every publish
func (s *Sensor) OnState(fn func(Reading)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, fn)
}

// PublishNumber implements NumericSink
func (s *Sensor) PublishNumber(v float64) {
	s.set(numberReading(s.output, v))
}

// PublishText implements TextSink
func (s *Sensor) PublishText(v string) {
	s.set(textReading(s.output, v))
}

// PublishBinary implements BinarySink
func (s *Sensor) PublishBinary(v bool) {
	s.set(binaryReading(s.output, v))
}

func (s *Sensor) set(r Reading) {
	s.mu.Lock()
	s.reading = r
	s.hasState = true
	s.updated = time.Now()
	s.count++
	callbacks := s.callbacks
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn(r)
	}
}

// HasState reports whether a value has been published at least once
func (s *Sensor) HasState() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasState
}

// Reading returns the latest reading and whether one exists
func (s *Sensor) Reading() (Reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reading, s.hasState
}

// Count returns the number of publishes
func (s *Sensor) Count() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Updated returns the time of the latest publish
func (s *Sensor) Updated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updated
}

// Clear forgets the published state, re-arming latch-once outputs
func (s *Sensor) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reading = Reading{Output: s.output}
	s.hasState = false
	s.count = 0
	s.updated = time.Time{}
}
