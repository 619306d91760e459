// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Telemetry is the set of in-memory sensors for one device session
type Telemetry struct {
	session uuid.UUID
	started time.Time
	order   []Output
	sensors map[Output]*Sensor
}

// NewTelemetry creates one sensor per listed output. No outputs means all outputs.
func NewTelemetry(outputs ...Output) *Telemetry {
	if len(outputs) == 0 {
		outputs = Outputs()
	}
	t := &Telemetry{
		session: uuid.New(),
		started: time.Now(),
		sensors: make(map[Output]*Sensor, len(outputs)),
	}
	for _, o := range Outputs() {
		for _, want := range outputs {
			if o == want {
				t.order = append(t.order, o)
				t.sensors[o] = NewSensor(o)
				break
			}
		}
	}
	return t
}

// Session returns the unique ID of this telemetry session
func (t *Telemetry) Session() uuid.UUID {
	return t.session
}

// Sensor returns the sensor for output o, if enabled
func (t *Telemetry) Sensor(o Output) (*Sensor, bool) {
	s, ok := t.sensors[o]
	return s, ok
}

// Outputs returns the enabled outputs in declaration order
func (t *Telemetry) Outputs() []Output {
	return append([]Output(nil), t.order...)
}

// Register attaches every sensor to sinks
func (t *Telemetry) Register(sinks *Sinks) error {
	for _, o := range t.order {
		if err := sinks.Register(o, t.sensors[o]); err != nil {
			return err
		}
	}
	return nil
}

// OnState registers fn on every sensor
func (t *Telemetry) OnState(fn func(Reading)) {
	for _, o := range t.order {
		t.sensors[o].OnState(fn)
	}
}

// Clear forgets all published values
func (t *Telemetry) Clear() {
	for _, o := range t.order {
		t.sensors[o].Clear()
	}
}

// Value is one output in a snapshot
type Value struct {
	Key     string      `json:"key"`
	Name    string      `json:"name"`
	Unit    string      `json:"unit,omitempty"`
	Kind    string      `json:"kind"`
	Value   interface{} `json:"value"`
	Valid   bool        `json:"valid"`
	Count   uint64      `json:"count"`
	Updated *time.Time  `json:"updated,omitempty"`
}

// Snapshot is a point-in-time copy of all enabled outputs
type Snapshot struct {
	Session string    `json:"session"`
	Started time.Time `json:"started"`
	Taken   time.Time `json:"taken"`
	Values  []Value   `json:"values"`
}

// Snapshot copies the current state of every sensor
func (t *Telemetry) Snapshot() Snapshot {
	snap := Snapshot{
		Session: t.session.String(),
		Started: t.started,
		Taken:   time.Now(),
		Values:  make([]Value, 0, len(t.order)),
	}
	for _, o := range t.order {
		s := t.sensors[o]
		r, ok := s.Reading()
		v := Value{
			Key:   o.Key(),
			Name:  o.Name(),
			Unit:  o.Unit(),
			Kind:  o.Kind().String(),
			Valid: ok,
			Count: s.Count(),
		}
		if ok {
			v.Value = r.Value()
			updated := s.Updated()
			v.Updated = &updated
		}
		snap.Values = append(snap.Values, v)
	}
	return snap
}

// Lookup returns the snapshot value for key
func (s Snapshot) Lookup(key string) (Value, bool) {
	for _, v := range s.Values {
		if v.Key == key {
			return v, true
		}
	}
	return Value{}, false
}

// DumpConfig logs every configured output, one line each
func DumpConfig(log zerolog.Logger, sinks *Sinks) {
	log.Info().Msg("Victron:")
	for _, o := range sinks.Configured() {
		log.Info().
			Str("output", o.Key()).
			Str("kind", o.Kind().String()).
			Str("unit", o.Unit()).
			Msgf("  %s", o.Name())
	}
}
