// ShortDramaVerse Telemetry - Durable Analytics Event Pipeline
// Copyright 2026 ShortDramaVerse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shortdramaverse/telemetry

// Package pipeline implements the analytics event pipeline: a recorder that
// stamps and enqueues typed events, a durable FIFO queue, delivery triggers
// (batch size, periodic timer, explicit flush), and at-least-once delivery
// through a transport.
package pipeline

import (
	"time"

	"github.com/shortdramaverse/telemetry/internal/event"
)

// Config holds pipeline behavior configuration.
type Config struct {
	// BatchSize is the queue depth that triggers an automatic flush.
	BatchSize int `koanf:"batch_size" validate:"min=1"`

	// FlushInterval is the periodic flush cadence for a non-empty queue.
	FlushInterval time.Duration `koanf:"flush_interval"`

	// SendTimeout bounds a single delivery attempt.
	SendTimeout time.Duration `koanf:"send_timeout"`

	// ShutdownFlushTimeout bounds the best-effort teardown flush. Events
	// not delivered within it are recovered from disk on next launch.
	ShutdownFlushTimeout time.Duration `koanf:"shutdown_flush_timeout"`

	// RecordBuffer is the capacity of the recorder's hand-off channel.
	// RecordEvent only blocks once this many appends are outstanding.
	RecordBuffer int `koanf:"record_buffer" validate:"min=1"`

	// Device carries client-reported device fields merged into the
	// detected snapshot at initialization.
	Device event.DeviceOverrides `koanf:"-"`
}

// DefaultConfig returns pipeline defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:            20,
		FlushInterval:        60 * time.Second,
		SendTimeout:          30 * time.Second,
		ShutdownFlushTimeout: 5 * time.Second,
		RecordBuffer:         256,
	}
}
