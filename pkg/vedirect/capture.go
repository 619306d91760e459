// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import (
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// CaptureEntry is one record persisted in a capture file.
// Capture files are a CBOR sequence of entries encoded as integer-keyed maps:
// {0: session, 1: unix-ms, 2: label, 3: value}. Label and value are byte
// strings since noisy links may deliver invalid UTF-8.
type CaptureEntry struct {
	Session    string `cbor:"0,keyasint"`
	TimeMillis int64  `cbor:"1,keyasint"`
	Label      []byte `cbor:"2,keyasint"`
	Value      []byte `cbor:"3,keyasint"`
}

// Record returns the captured label/value pair
func (e CaptureEntry) Record() Record {
	return Record{Label: string(e.Label), Value: string(e.Value)}
}

// Time returns the capture timestamp
func (e CaptureEntry) Time() time.Time {
	return time.UnixMilli(e.TimeMillis)
}

// CaptureWriter appends records to a capture stream.
// It implements RecordHandler; the first write error is kept and later
// records are dropped.
type CaptureWriter struct {
	enc     *cbor.Encoder
	session string
	count   uint64
	err     error
	now     func() time.Time
}

// NewCaptureWriter creates a writer tagging entries with session
func NewCaptureWriter(w io.Writer, session uuid.UUID) *CaptureWriter {
	return &CaptureWriter{
		enc:     cbor.NewEncoder(w),
		session: session.String(),
		now:     time.Now,
	}
}

// Write encodes one record with the given timestamp
func (c *CaptureWriter) Write(r Record, ts time.Time) error {
	if c.err != nil {
		return c.err
	}
	entry := CaptureEntry{
		Session:    c.session,
		TimeMillis: ts.UnixMilli(),
		Label:      []byte(r.Label),
		Value:      []byte(r.Value),
	}
	if err := c.enc.Encode(entry); err != nil {
		c.err = fmt.Errorf("failed to encode capture entry: %w", err)
		return c.err
	}
	c.count++
	return nil
}

// HandleRecord implements RecordHandler
func (c *CaptureWriter) HandleRecord(r Record) {
	_ = c.Write(r, c.now())
}

// Count returns the number of entries written
func (c *CaptureWriter) Count() uint64 {
	return c.count
}

// Err returns the first write error, if any
func (c *CaptureWriter) Err() error {
	return c.err
}

// CaptureReader reads entries from a capture stream
type CaptureReader struct {
	dec *cbor.Decoder
}

// NewCaptureReader creates a reader over r
func NewCaptureReader(r io.Reader) *CaptureReader {
	return &CaptureReader{dec: cbor.NewDecoder(r)}
}

// Next returns the next entry, or io.EOF at the end of the stream
func (c *CaptureReader) Next() (CaptureEntry, error) {
	var entry CaptureEntry
	if err := c.dec.Decode(&entry); err != nil {
		if err == io.EOF {
			return CaptureEntry{}, io.EOF
		}
		return CaptureEntry{}, fmt.Errorf("failed to decode capture entry: %w", err)
	}
	return entry, nil
}

// ReadCapture reads every entry from r
func ReadCapture(r io.Reader) ([]CaptureEntry, error) {
	cr := NewCaptureReader(r)
	var entries []CaptureEntry
	for {
		entry, err := cr.Next()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return entries, err
		}
		entries = append(entries, entry)
	}
}
