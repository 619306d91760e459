// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package logging builds the zerolog logger shared by every command.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/Thermoquad/vedirect/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a configured logger plus the rotating file behind it, if any
type Logger struct {
	zerolog.Logger
	file *lumberjack.Logger
}

// Close flushes and closes the log file
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// New builds a logger writing to out (normally stderr) and, when cfg.File is
// set, to a size-rotated JSON log file
func New(cfg config.LoggerConfig, out io.Writer) (*Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, err
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var console io.Writer = out
	if cfg.Format != "json" {
		console = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	l := &Logger{}
	writer := console
	if cfg.File != "" {
		l.file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		writer = zerolog.MultiLevelWriter(console, l.file)
	}

	l.Logger = zerolog.New(writer).Level(level).With().Timestamp().Str("app", "vedirect").Logger()
	return l, nil
}

// Init builds the logger for cfg on stderr and installs it as the global logger
func Init(cfg config.LoggerConfig) (*Logger, error) {
	l, err := New(cfg, os.Stderr)
	if err != nil {
		return nil, err
	}
	log.Logger = l.Logger
	return l, nil
}
