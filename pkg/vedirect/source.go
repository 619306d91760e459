// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ErrNoData is returned by ReadByte when no bytes are buffered
var ErrNoData = errors.New("no data available")

// DefaultSourceCapacity bounds the bytes a BufferedSource holds between polls
const DefaultSourceCapacity = 64 * 1024

// ByteSource is a non-blocking byte supplier polled by the Tokenizer
type ByteSource interface {
	// Available returns the number of bytes that can be read without blocking
	Available() int
	// ReadByte returns the next buffered byte
	ReadByte() (byte, error)
}

// BufferedSource adapts a blocking reader (serial port, WebSocket) into a
// ByteSource. Bytes are appended by Write or Fill and consumed by ReadByte.
// It is safe for one writer goroutine and one reader goroutine.
type BufferedSource struct {
	mu       sync.Mutex
	buf      []byte
	head     int
	capacity int
	dropped  uint64
	err      error
}

// NewBufferedSource creates an empty source holding at most capacity bytes.
// A non-positive capacity selects DefaultSourceCapacity.
func NewBufferedSource(capacity int) *BufferedSource {
	if capacity <= 0 {
		capacity = DefaultSourceCapacity
	}
	return &BufferedSource{
		buf:      make([]byte, 0, 512),
		capacity: capacity,
	}
}

// Write appends p to the buffer. When the buffer is full the oldest bytes
// are dropped; the tokenizer resynchronizes on the next line terminator.
func (s *BufferedSource) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.head > 0 {
		s.buf = append(s.buf[:0], s.buf[s.head:]...)
		s.head = 0
	}
	s.buf = append(s.buf, p...)
	if over := len(s.buf) - s.capacity; over > 0 {
		s.buf = append(s.buf[:0], s.buf[over:]...)
		s.dropped += uint64(over)
	}
	return len(p), nil
}

// Available returns the number of buffered bytes
func (s *BufferedSource) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf) - s.head
}

// ReadByte pops the oldest buffered byte
func (s *BufferedSource) ReadByte() (byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.head >= len(s.buf) {
		return 0, ErrNoData
	}
	b := s.buf[s.head]
	s.head++
	if s.head == len(s.buf) {
		s.buf = s.buf[:0]
		s.head = 0
	}
	return b, nil
}

// Dropped returns the number of bytes discarded due to overflow
func (s *BufferedSource) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Err returns the terminal error recorded by Fill, if any
func (s *BufferedSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Fill copies from r into the buffer until r fails or ctx is cancelled.
// Cancellation is only observed between reads; close r to unblock a pending read.
func (s *BufferedSource) Fill(ctx context.Context, r io.Reader) error {
	buf := make([]byte, 128)
	for {
		if err := ctx.Err(); err != nil {
			s.setErr(err)
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			s.Write(buf[:n])
		}
		if err != nil {
			s.setErr(err)
			return err
		}
	}
}

func (s *BufferedSource) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}
