// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

// Record is a completed label/value pair recovered from the stream
type Record struct {
	Label string
	Value string
}

// RecordHandler consumes completed records synchronously
type RecordHandler interface {
	HandleRecord(r Record)
}

// RecordHandlerFunc adapts a function to RecordHandler
type RecordHandlerFunc func(r Record)

// HandleRecord calls f(r)
func (f RecordHandlerFunc) HandleRecord(r Record) {
	f(r)
}

// MultiHandler fans a record out to several handlers in order
type MultiHandler []RecordHandler

// HandleRecord dispatches r to every non-nil handler
func (m MultiHandler) HandleRecord(r Record) {
	for _, h := range m {
		if h != nil {
			h.HandleRecord(r)
		}
	}
}
