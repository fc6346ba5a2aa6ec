// ShortDramaVerse Telemetry - Durable Analytics Event Pipeline
// Copyright 2026 ShortDramaVerse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shortdramaverse/telemetry

// Package queue provides the durable FIFO event queue backing the pipeline.
// Events are persisted to BadgerDB (ACID, fsync) on append and removed only
// after the ingestion endpoint acknowledges their batch, ensuring no event
// loss across process crashes or delivery failures.
package queue

import (
	"time"
)

// Config holds queue storage configuration.
type Config struct {
	// Path is the directory where BadgerDB stores its files.
	// Should be on a durable filesystem (not tmpfs).
	Path string `koanf:"path" validate:"required"`

	// SyncWrites forces fsync after every append for maximum durability.
	// Set to false for higher throughput at the risk of losing the most
	// recent events on power failure.
	SyncWrites bool `koanf:"sync_writes"`

	// MemTableSize is the size of each BadgerDB memtable in bytes.
	MemTableSize int64 `koanf:"memtable_size" validate:"min=1048576"`

	// ValueLogFileSize is the size of each BadgerDB value log file in bytes.
	ValueLogFileSize int64 `koanf:"vlog_size" validate:"min=1048576"`

	// NumCompactors is the number of BadgerDB compaction workers.
	// BadgerDB requires at least 2.
	NumCompactors int `koanf:"num_compactors" validate:"min=2"`

	// CloseTimeout is the maximum time to wait for graceful shutdown.
	CloseTimeout time.Duration `koanf:"close_timeout"`
}

// DefaultConfig returns durability-first defaults.
func DefaultConfig() Config {
	return Config{
		Path:             "/data/telemetry/queue",
		SyncWrites:       true,
		MemTableSize:     16 * 1024 * 1024,
		ValueLogFileSize: 64 * 1024 * 1024,
		NumCompactors:    2,
		CloseTimeout:     30 * time.Second,
	}
}
