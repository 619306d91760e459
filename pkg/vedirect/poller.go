// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import (
	"context"
	"time"
)

// Poller drives a Tokenizer from a periodic tick, the way a host scheduler would
type Poller struct {
	Source    ByteSource
	Tokenizer *Tokenizer
	Interval  time.Duration

	// OnPoll, if set, is called after every tick with the bytes consumed
	OnPoll func(n int, now time.Time)
}

// Run polls until ctx is cancelled or the source fails.
// A source exposing Err() error is considered failed once it reports an
// error and has no buffered bytes left.
func (p *Poller) Run(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		interval = PollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			now := time.Now()
			n, err := p.Tokenizer.Poll(p.Source, now)
			if p.OnPoll != nil {
				p.OnPoll(n, now)
			}
			if err != nil {
				return err
			}
			if es, ok := p.Source.(interface{ Err() error }); ok {
				if err := es.Err(); err != nil && p.Source.Available() == 0 {
					return err
				}
			}
		}
	}
}
