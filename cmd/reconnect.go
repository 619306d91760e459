// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"time"
)

const (
	reconnectInitialBackoff = 1 * time.Second
	reconnectMaxBackoff     = 30 * time.Second
)

// reconnector keeps a stream session running, reopening the link with
// exponential backoff each time it drops
type reconnector struct {
	open    func(ctx context.Context) (*stream, error)
	initial time.Duration
	max     time.Duration

	// Optional notifications
	onLost      func(err error)
	onReconnect func(info string)
}

func newReconnector() *reconnector {
	return &reconnector{
		open:    openStream,
		initial: reconnectInitialBackoff,
		max:     reconnectMaxBackoff,
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	cur *= 2
	if cur > max {
		return max
	}
	return cur
}

// run calls session with s, and with every reopened stream after it, until
// ctx is cancelled. Only the context ends the loop; link errors are retried.
func (r *reconnector) run(ctx context.Context, s *stream, session func(*stream) error) error {
	for {
		err := session(s)
		s.Close()
		if ctx.Err() != nil {
			return nil
		}
		if r.onLost != nil {
			r.onLost(err)
		}

		s = r.reopen(ctx)
		if s == nil {
			return nil
		}
		if r.onReconnect != nil {
			r.onReconnect(s.info)
		}
	}
}

// reopen retries open until it succeeds or ctx is cancelled (nil)
func (r *reconnector) reopen(ctx context.Context) *stream {
	backoff := r.initial
	for {
		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}

		s, err := r.open(ctx)
		if err == nil {
			return s
		}
		logger.Debug().Err(err).Dur("backoff", backoff).Msg("Reconnect failed")
		backoff = nextBackoff(backoff, r.max)
	}
}
