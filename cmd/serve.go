// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Thermoquad/vedirect/internal/api"
	"github.com/Thermoquad/vedirect/internal/publish"
	"github.com/Thermoquad/vedirect/pkg/vedirect"
	"github.com/spf13/cobra"
)

var (
	serveListen  string
	serveRedis   string
	serveOutputs []string
	serveNoRetry bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve live readings over HTTP and mirror them to Redis",
	Long: `Decode the stream and expose the latest readings as JSON.

Endpoints:
  GET /healthz                  Liveness, session and record count
  GET /api/outputs              Enabled outputs with unit and kind
  GET /api/telemetry            Snapshot of every enabled output
  GET /api/telemetry/{key}      One output
  GET /api/statistics           Stream statistics

With --redis (or redis.enabled in the config file) every published reading is
also written to the hash <prefix>:<session> and announced on the channel
<prefix>:updates. Redis writes are queued, so a slow server never stalls
decoding.

The link is reopened with exponential backoff whenever it drops, unless
--no-reconnect is given.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", ":8080", "HTTP listen address")
	serveCmd.Flags().StringVar(&serveRedis, "redis", "", "Redis address (host:port) to mirror readings to")
	serveCmd.Flags().StringSliceVar(&serveOutputs, "outputs", nil, "Output keys to decode (default all)")
	serveCmd.Flags().BoolVar(&serveNoRetry, "no-reconnect", false, "Exit when the link drops instead of reopening it")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	telemetry, decoder, err := newPipeline()
	if err != nil {
		return err
	}
	vedirect.DumpConfig(logger.Logger, decoder.Sinks())

	if cfg.Redis.Enabled {
		client, err := publish.NewClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()

		mirror := publish.NewMirror(client, cfg.Redis.KeyPrefix, telemetry.Session(), logger.Logger)
		telemetry.OnState(mirror.Publish)
		go func() {
			_ = mirror.Run(ctx)
			written, dropped, failed := mirror.Stats()
			logger.Info().
				Uint64("written", written).
				Uint64("dropped", dropped).
				Uint64("failed", failed).
				Msg("Redis mirror stopped")
		}()
		logger.Info().Str("address", cfg.Redis.Address).Str("key", mirror.Key()).Msg("Mirroring readings to Redis")
	}

	s, err := openStream(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	stats := vedirect.NewStatistics()
	server := api.NewServer(telemetry, stats, s.info, logger.Logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Run(ctx, cfg.HTTP.Listen)
	}()

	fmt.Printf("vedirect - Serve\n")
	fmt.Printf("Connection: %s\n", s.info)
	fmt.Printf("Session: %s\n", telemetry.Session())
	fmt.Printf("Listening on %s\n", cfg.HTTP.Listen)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	tok := newTokenizer(
		vedirect.MultiHandler{
			vedirect.RecordHandlerFunc(func(r vedirect.Record) {
				stats.Update(r, vedirect.ValidateRecord(r))
			}),
			decoder,
		},
		vedirect.WithChecksumHandler(stats.ChecksumFrame),
		vedirect.WithStaleHandler(func(vedirect.Record, time.Duration) { stats.StaleReset() }),
	)

	session := func(s *stream) error {
		return s.poll(ctx, tok, func(n int, _ time.Time) { stats.AddBytes(n) })
	}

	pollErr := make(chan error, 1)
	go func() {
		if serveNoRetry {
			pollErr <- session(s)
			return
		}
		r := newReconnector()
		r.onLost = func(err error) {
			logger.Warn().Err(err).Msg("Connection lost, reconnecting")
		}
		r.onReconnect = func(info string) {
			logger.Info().Str("connection", info).Msg("Reconnected")
		}
		pollErr <- r.run(ctx, s, session)
	}()

	select {
	case err = <-pollErr:
		cancel()
		if srvErr := <-serverErr; srvErr != nil && !errors.Is(srvErr, http.ErrServerClosed) && err == nil {
			err = srvErr
		}
	case err = <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		cancel()
		<-pollErr
	}

	return err
}
