// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"time"

	"github.com/Thermoquad/vedirect/pkg/vedirect"
)

// stream is an open link with its reader goroutine running
type stream struct {
	conn   Connection
	info   string
	source *vedirect.BufferedSource
}

// openStream opens the configured link and starts filling a byte source from it
func openStream(ctx context.Context) (*stream, error) {
	conn, info, err := OpenConnection()
	if err != nil {
		return nil, err
	}
	return &stream{conn: conn, info: info, source: startReader(ctx, conn)}, nil
}

func (s *stream) Close() error {
	return s.conn.Close()
}

// poll drives tok from the stream until ctx is cancelled or the link closes.
// onPoll may be nil.
func (s *stream) poll(ctx context.Context, tok *vedirect.Tokenizer, onPoll func(n int, now time.Time)) error {
	p := &vedirect.Poller{
		Source:    s.source,
		Tokenizer: tok,
		Interval:  cfg.Decoder.PollInterval,
		OnPoll:    onPoll,
	}
	err := p.Run(ctx)
	if isClosed(err) {
		return nil
	}
	return err
}
