// ShortDramaVerse Telemetry - Durable Analytics Event Pipeline
// Copyright 2026 ShortDramaVerse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shortdramaverse/telemetry

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"telemetryd.yaml",
	"telemetryd.yml",
	"/etc/shortdramaverse/telemetryd.yaml",
	"/etc/shortdramaverse/telemetryd.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "TELEMETRY_CONFIG"

// Load builds configuration from layered sources (highest priority wins):
//
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables
//
// The result is validated before being returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings maps recognized environment variables to config paths.
// Unlisted variables are ignored so unrelated process environment never
// leaks into the configuration.
var envMappings = map[string]string{
	"INGEST_ENDPOINT":                  "ingest.endpoint",
	"INGEST_API_KEY":                   "ingest.api_key",
	"INGEST_TIMEOUT":                   "ingest.timeout",
	"INGEST_BREAKER_ENABLED":           "ingest.breaker.enabled",
	"INGEST_BREAKER_FAILURE_THRESHOLD": "ingest.breaker.failure_threshold",
	"INGEST_BREAKER_OPEN_TIMEOUT":      "ingest.breaker.open_timeout",

	"PIPELINE_BATCH_SIZE":             "pipeline.batch_size",
	"PIPELINE_FLUSH_INTERVAL":         "pipeline.flush_interval",
	"PIPELINE_SEND_TIMEOUT":           "pipeline.send_timeout",
	"PIPELINE_SHUTDOWN_FLUSH_TIMEOUT": "pipeline.shutdown_flush_timeout",
	"PIPELINE_RECORD_BUFFER":          "pipeline.record_buffer",

	"QUEUE_PATH":          "queue.path",
	"QUEUE_SYNC_WRITES":   "queue.sync_writes",
	"QUEUE_CLOSE_TIMEOUT": "queue.close_timeout",

	"HTTP_HOST":             "server.host",
	"HTTP_PORT":             "server.port",
	"HTTP_CORS_ORIGINS":     "server.cors_origins",
	"HTTP_RATE_LIMIT":       "server.rate_limit_requests",
	"HTTP_RATE_LIMIT_OFF":   "server.rate_limit_disabled",
	"HTTP_SHUTDOWN_TIMEOUT": "server.shutdown_timeout",

	"LOG_LEVEL":  "logging.level",
	"LOG_FORMAT": "logging.format",
	"LOG_CALLER": "logging.caller",

	"APP_VERSION":       "app.version",
	"APP_PLATFORM":      "app.platform",
	"APP_DEVICE_MODEL":  "app.device_model",
	"APP_SCREEN_WIDTH":  "app.screen_width",
	"APP_SCREEN_HEIGHT": "app.screen_height",
	"APP_LANGUAGE":      "app.language",
	"APP_TIMEZONE":      "app.timezone",
}

// envTransform maps an environment variable name to its koanf path.
// Returning "" drops the variable.
func envTransform(key string) string {
	return envMappings[strings.ToUpper(key)]
}

// sliceConfigPaths are config paths parsed as comma-separated slices when
// they arrive as plain strings from the environment.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// the known slice fields. Env vars come in as strings but the config
// expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}
