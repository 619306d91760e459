// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Thermoquad/vedirect/pkg/vedirect"
	"github.com/spf13/cobra"
)

var (
	replayRealtime bool
	replaySpeed    float64
	replayRaw      bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <capture-file>",
	Short: "Replay a capture file through the decoder",
	Long: `Read a capture written by "vedirect capture" and decode it offline.

By default records are decoded as fast as possible and every published
reading is printed. Use --raw to print records as raw_log does, and
--realtime to pace the replay by the recorded timestamps.

A statistics summary is printed at the end.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayRealtime, "realtime", false, "Pace the replay by the recorded timestamps")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Speed multiplier for --realtime")
	replayCmd.Flags().BoolVar(&replayRaw, "raw", false, "Print raw records instead of decoded readings")
}

// replayPacer sleeps between entries to reproduce their recorded spacing
type replayPacer struct {
	speed float64
	last  time.Time
}

// delay returns how long to wait before an entry captured at ts
func (p *replayPacer) delay(ts time.Time) time.Duration {
	if p.last.IsZero() || !ts.After(p.last) {
		p.last = ts
		return 0
	}
	d := ts.Sub(p.last)
	p.last = ts
	if p.speed > 0 {
		d = time.Duration(float64(d) / p.speed)
	}
	return d
}

func (p *replayPacer) wait(ctx context.Context, ts time.Time) error {
	d := p.delay(ts)
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// replayer feeds capture entries through a decoder. Latch-once outputs are
// re-armed at every session boundary after the first.
type replayer struct {
	telemetry *vedirect.Telemetry
	decoder   *vedirect.Decoder
	stats     *vedirect.Statistics
	pacer     *replayPacer
	sessions  map[string]bool

	onSession func(session string)
	onRecord  func(r vedirect.Record, ts time.Time)
}

func newReplayer(telemetry *vedirect.Telemetry, decoder *vedirect.Decoder) *replayer {
	return &replayer{
		telemetry: telemetry,
		decoder:   decoder,
		stats:     vedirect.NewStatistics(),
		sessions:  map[string]bool{},
	}
}

// run replays entries until EOF or cancellation. A nil pacer replays as fast as possible.
func (rp *replayer) run(ctx context.Context, reader *vedirect.CaptureReader) error {
	for {
		entry, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		if rp.pacer != nil {
			if err := rp.pacer.wait(ctx, entry.Time()); err != nil {
				return nil
			}
		} else if ctx.Err() != nil {
			return nil
		}

		if !rp.sessions[entry.Session] {
			if len(rp.sessions) > 0 {
				rp.telemetry.Clear()
			}
			rp.sessions[entry.Session] = true
			if rp.onSession != nil {
				rp.onSession(entry.Session)
			}
		}

		r := entry.Record()
		rp.stats.AddBytes(len(entry.Label) + len(entry.Value) + 3)
		rp.stats.Update(r, vedirect.ValidateRecord(r))
		if rp.onRecord != nil {
			rp.onRecord(r, entry.Time())
		}
		rp.decoder.HandleRecord(r)
	}
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if replaySpeed <= 0 {
		return fmt.Errorf("--speed must be positive")
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open capture: %w", err)
	}
	defer f.Close()

	var replayTime time.Time
	telemetry, decoder, err := newPipeline(vedirect.WithPublishHook(func(r vedirect.Reading) {
		if !replayRaw {
			fmt.Printf("[%s] %-28s %s\n", replayTime.Format("15:04:05.000"), r.Output.Name()+":", vedirect.FormatReading(r))
		}
	}))
	if err != nil {
		return err
	}

	fmt.Printf("vedirect - Replay\n")
	fmt.Printf("Capture: %s\n\n", args[0])

	rp := newReplayer(telemetry, decoder)
	if replayRealtime {
		rp.pacer = &replayPacer{speed: replaySpeed}
	}
	rp.onSession = func(session string) {
		fmt.Printf("--- session %s ---\n", session)
	}
	rp.onRecord = func(r vedirect.Record, ts time.Time) {
		replayTime = ts
		if replayRaw {
			fmt.Print(vedirect.FormatRecord(r, ts))
		}
	}

	if err := rp.run(ctx, vedirect.NewCaptureReader(f)); err != nil {
		return err
	}

	fmt.Println()
	fmt.Print(rp.stats.String())
	return nil
}
