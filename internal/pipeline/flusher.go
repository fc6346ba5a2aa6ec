// ShortDramaVerse Telemetry - Durable Analytics Event Pipeline
// Copyright 2026 ShortDramaVerse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shortdramaverse/telemetry

package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/shortdramaverse/telemetry/internal/logging"
)

// Flusher runs the periodic delivery trigger: every FlushInterval it flushes
// a non-empty queue. The pipeline's own guards handle the offline and
// in-flight cases, so a tick is always safe to fire.
type Flusher struct {
	pipeline *Pipeline
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	// State - all protected by mu
	mu       sync.Mutex
	running  bool
	stopping bool          // true while Stop() is waiting for the goroutine
	stopDone chan struct{} // closed when the goroutine exits
}

// NewFlusher creates the periodic flusher for a pipeline.
func NewFlusher(p *Pipeline) *Flusher {
	return &Flusher{
		pipeline: p,
		interval: p.cfg.FlushInterval,
	}
}

// Start begins the periodic trigger. It runs until Stop is called or the
// context is canceled.
func (f *Flusher) Start(ctx context.Context) error {
	f.mu.Lock()

	// Wait for any in-progress Stop() to complete
	for f.stopping {
		stopDone := f.stopDone
		f.mu.Unlock()
		<-stopDone
		f.mu.Lock()
	}

	if f.running {
		f.mu.Unlock()
		return nil
	}

	f.ctx, f.cancel = context.WithCancel(ctx)
	f.running = true
	f.stopDone = make(chan struct{})

	loopCtx := f.ctx
	done := f.stopDone
	f.mu.Unlock()

	go f.run(loopCtx, done)

	logging.Info().Dur("interval", f.interval).Msg("periodic flusher started")
	return nil
}

// Stop gracefully stops the periodic trigger.
func (f *Flusher) Stop() {
	f.mu.Lock()
	if !f.running || f.stopping {
		f.mu.Unlock()
		return
	}

	f.cancel()
	f.running = false
	f.stopping = true
	stopDone := f.stopDone
	f.mu.Unlock()

	<-stopDone

	f.mu.Lock()
	f.stopping = false
	f.mu.Unlock()

	logging.Info().Msg("periodic flusher stopped")
}

// IsRunning returns whether the flusher is active.
func (f *Flusher) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// run is the ticker goroutine.
func (f *Flusher) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if f.pipeline.QueueLen() == 0 {
				continue
			}
			f.pipeline.flush(ctx, "interval")
		}
	}
}
