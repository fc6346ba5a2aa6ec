// ShortDramaVerse Telemetry - Durable Analytics Event Pipeline
// Copyright 2026 ShortDramaVerse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shortdramaverse/telemetry

// Package config loads and validates telemetryd configuration from layered
// sources: built-in defaults, an optional YAML file, and environment
// variables (highest priority).
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/shortdramaverse/telemetry/internal/pipeline"
	"github.com/shortdramaverse/telemetry/internal/queue"
	"github.com/shortdramaverse/telemetry/internal/transport"
)

// Config is the complete telemetryd configuration.
type Config struct {
	App      AppConfig        `koanf:"app"`
	Ingest   transport.Config `koanf:"ingest"`
	Pipeline pipeline.Config  `koanf:"pipeline"`
	Queue    queue.Config     `koanf:"queue"`
	Server   ServerConfig     `koanf:"server"`
	Logging  LoggingConfig    `koanf:"logging"`
}

// AppConfig carries client-reported application/device metadata that the
// relay cannot detect itself.
type AppConfig struct {
	// Version is reported as appVersion on every event.
	Version string `koanf:"version"`

	// Platform overrides the detected platform tag (e.g. "android", "ios",
	// "web") when the relay fronts a known client.
	Platform string `koanf:"platform"`

	// DeviceModel overrides the detected model string.
	DeviceModel string `koanf:"device_model"`

	// ScreenWidth and ScreenHeight are client display geometry in pixels.
	ScreenWidth  int `koanf:"screen_width" validate:"min=0"`
	ScreenHeight int `koanf:"screen_height" validate:"min=0"`

	// Language and Timezone override environment detection.
	Language string `koanf:"language"`
	Timezone string `koanf:"timezone"`
}

// ServerConfig configures the local relay HTTP API.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port" validate:"min=1,max=65535"`

	// ReadTimeout/WriteTimeout bound request handling.
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown of in-flight requests.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// CORSOrigins lists allowed origins for browser clients posting
	// events cross-origin (e.g. the web client dev server).
	CORSOrigins []string `koanf:"cors_origins"`

	// Rate limiting for the relay endpoints.
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"min=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error fatal disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all defaults applied. These are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Version: "dev",
		},
		Ingest:   transport.DefaultConfig(),
		Pipeline: pipeline.DefaultConfig(),
		Queue:    queue.DefaultConfig(),
		Server: ServerConfig{
			Host:              "127.0.0.1",
			Port:              9610,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			CORSOrigins:       []string{},
			RateLimitRequests: 300,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks the loaded configuration. Struct tags cover ranges and
// enumerations; the handwritten checks cover cross-field requirements.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	// Durations are validated by hand; validator tags treat time.Duration
	// as a bare integer.
	if c.Pipeline.FlushInterval < time.Second {
		return fmt.Errorf("config validation: pipeline.flush_interval must be at least 1s")
	}
	if c.Pipeline.SendTimeout < time.Second {
		return fmt.Errorf("config validation: pipeline.send_timeout must be at least 1s")
	}
	if c.Ingest.Timeout < time.Second {
		return fmt.Errorf("config validation: ingest.timeout must be at least 1s")
	}
	if c.Pipeline.SendTimeout > c.Ingest.Timeout {
		return fmt.Errorf("config validation: pipeline.send_timeout (%v) must not exceed ingest.timeout (%v)",
			c.Pipeline.SendTimeout, c.Ingest.Timeout)
	}
	return nil
}
