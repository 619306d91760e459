// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads runtime settings from an optional YAML file,
// VEDIRECT_* environment variables and command-line flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/vedirect/pkg/vedirect"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. VEDIRECT_SERIAL_PORT
const EnvPrefix = "VEDIRECT"

// Config is the complete runtime configuration
type Config struct {
	Serial    SerialConfig    `mapstructure:"serial"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Decoder   DecoderConfig   `mapstructure:"decoder"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Redis     RedisConfig     `mapstructure:"redis"`
	HTTP      HTTPConfig      `mapstructure:"http"`
}

// SerialConfig selects a local serial port
type SerialConfig struct {
	Port string `mapstructure:"port"`
	Baud int    `mapstructure:"baud"`
}

// WebSocketConfig selects a remote serial bridge
type WebSocketConfig struct {
	URL         string `mapstructure:"url"`
	Username    string `mapstructure:"username"`
	NoSSLVerify bool   `mapstructure:"no_ssl_verify"`
}

// DecoderConfig tunes the tokenizer and selects published outputs
type DecoderConfig struct {
	StaleTimeout time.Duration `mapstructure:"stale_timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// Outputs lists output keys to enable; empty enables all
	Outputs []string `mapstructure:"outputs"`
}

// LoggerConfig controls diagnostic logging
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// RedisConfig controls the optional Redis mirror used by serve
type RedisConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Address     string        `mapstructure:"address"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// HTTPConfig controls the telemetry API used by serve
type HTTPConfig struct {
	Listen string `mapstructure:"listen"`
}

// flagKeys maps command-line flag names to configuration keys
var flagKeys = map[string]string{
	"port":          "serial.port",
	"baud":          "serial.baud",
	"url":           "websocket.url",
	"username":      "websocket.username",
	"no-ssl-verify": "websocket.no_ssl_verify",
	"log-level":     "logger.level",
	"log-file":      "logger.file",
	"log-format":    "logger.format",
	"outputs":       "decoder.outputs",
	"listen":        "http.listen",
	"redis":         "redis.address",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baud", vedirect.BaudRate)

	v.SetDefault("websocket.url", "")
	v.SetDefault("websocket.username", "")
	v.SetDefault("websocket.no_ssl_verify", false)

	v.SetDefault("decoder.stale_timeout", vedirect.StaleTimeout)
	v.SetDefault("decoder.poll_interval", vedirect.PollInterval)
	v.SetDefault("decoder.outputs", []string{})

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.file", "")
	v.SetDefault("logger.max_size_mb", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age_days", 28)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "vedirect")
	v.SetDefault("redis.dial_timeout", 5*time.Second)

	v.SetDefault("http.listen", ":8080")
}

// Default returns the built-in configuration. Files and the environment are not read.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: invalid built-in defaults: %v", err))
	}
	return &cfg
}

// Load reads configuration with the precedence flags > environment > file > defaults.
// An empty path skips the file; flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// --redis on the command line enables the mirror
	if flags != nil {
		if f := flags.Lookup("redis"); f != nil && f.Changed && f.Value.String() != "" {
			cfg.Redis.Enabled = true
		}
	}

	return &cfg, nil
}

// Validate checks the configuration for values the runtime cannot use
func (c *Config) Validate() error {
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("serial.baud must be positive, got %d", c.Serial.Baud)
	}
	if c.Decoder.StaleTimeout <= 0 {
		return fmt.Errorf("decoder.stale_timeout must be positive, got %s", c.Decoder.StaleTimeout)
	}
	if c.Decoder.PollInterval <= 0 {
		return fmt.Errorf("decoder.poll_interval must be positive, got %s", c.Decoder.PollInterval)
	}
	if _, err := c.Decoder.ResolveOutputs(); err != nil {
		return err
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Logger.Level)); err != nil {
		return fmt.Errorf("logger.level: %w", err)
	}
	switch c.Logger.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be console or json, got %q", c.Logger.Format)
	}
	if c.Redis.Enabled && c.Redis.Address == "" {
		return fmt.Errorf("redis.address is required when redis is enabled")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db must not be negative, got %d", c.Redis.DB)
	}
	return nil
}

// ResolveOutputs converts the configured output keys. No keys selects every output.
func (d DecoderConfig) ResolveOutputs() ([]vedirect.Output, error) {
	if len(d.Outputs) == 0 {
		return vedirect.Outputs(), nil
	}

	outputs := make([]vedirect.Output, 0, len(d.Outputs))
	var unknown []string
	for _, key := range d.Outputs {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		o, ok := vedirect.LookupOutput(key)
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		outputs = append(outputs, o)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("decoder.outputs: unknown output(s) %s", strings.Join(unknown, ", "))
	}
	if len(outputs) == 0 {
		return vedirect.Outputs(), nil
	}
	return outputs, nil
}
