// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Thermoquad/vedirect/internal/config"
	"github.com/Thermoquad/vedirect/internal/logging"
	"github.com/Thermoquad/vedirect/pkg/vedirect"
	"github.com/spf13/cobra"
)

var (
	// Config file
	configPath string

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Logging flags
	logLevel  string
	logFile   string
	logFormat string

	// Resolved at startup
	cfg    *config.Config
	logger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "vedirect",
	Short: "Victron VE.Direct Text Protocol Monitor",
	Long: `vedirect - A CLI tool for decoding and monitoring Victron VE.Direct devices.

Solar charge controllers, inverters and battery monitors with a VE.Direct port
stream blocks of label/value lines at 19200 baud. This tool decodes them into
typed readings, checks the stream for anomalies, and can record, replay or
serve the live values over HTTP.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 19200]
  WebSocket: --url ws://host/path [--username user]

Settings may also come from a YAML file (--config) or VEDIRECT_* environment
variables, e.g. VEDIRECT_SERIAL_PORT or VEDIRECT_LOGGER_LEVEL. Flags win over
the environment, which wins over the file.

For WebSocket authentication, the password is read from the VEDIRECT_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (YAML)")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", vedirect.BaudRate, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Logging flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write JSON logs to this file (rotated)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "Log format on stderr (console, json)")
}

// setup resolves configuration and logging before any subcommand runs
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return err
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded

	logger, err = logging.Init(cfg.Logger)
	if err != nil {
		return err
	}
	logger.Debug().Str("config", configPath).Msg("Configuration loaded")
	return nil
}

// newPipeline builds the telemetry, sink registry and decoder for the
// configured outputs
func newPipeline(opts ...vedirect.DecoderOption) (*vedirect.Telemetry, *vedirect.Decoder, error) {
	outputs, err := cfg.Decoder.ResolveOutputs()
	if err != nil {
		return nil, nil, err
	}

	telemetry := vedirect.NewTelemetry(outputs...)
	sinks := vedirect.NewSinks()
	if err := telemetry.Register(sinks); err != nil {
		return nil, nil, err
	}

	opts = append([]vedirect.DecoderOption{vedirect.WithDecoderLogger(logger.Logger)}, opts...)
	return telemetry, vedirect.NewDecoder(sinks, opts...), nil
}

// newTokenizer builds a tokenizer using the configured staleness window
func newTokenizer(handler vedirect.RecordHandler, opts ...vedirect.TokenizerOption) *vedirect.Tokenizer {
	opts = append([]vedirect.TokenizerOption{
		vedirect.WithStaleTimeout(cfg.Decoder.StaleTimeout),
		vedirect.WithLogger(logger.Logger),
	}, opts...)
	return vedirect.NewTokenizer(handler, opts...)
}

// Execute runs the root command. Ctrl+C or SIGTERM cancels the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
