// ShortDramaVerse Telemetry - Durable Analytics Event Pipeline
// Copyright 2026 ShortDramaVerse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shortdramaverse/telemetry

package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/shortdramaverse/telemetry/internal/event"
)

func TestFlusherStartStop(t *testing.T) {
	sender := &mockSender{}
	p := setupPipeline(t, sender)
	f := NewFlusher(p)

	if f.IsRunning() {
		t.Error("IsRunning() = true before Start")
	}
	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !f.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}

	// Start is idempotent.
	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("second Start() failed: %v", err)
	}

	f.Stop()
	if f.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}

	// Stop is idempotent.
	f.Stop()
}

func TestFlusherDeliversOnInterval(t *testing.T) {
	sender := &mockSender{}
	q := setupTestQueue(t)
	p := New(Config{
		BatchSize:     20,
		FlushInterval: 25 * time.Millisecond,
	}, q, sender)
	if err := p.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	t.Cleanup(p.Cleanup)

	recordAndAwait(t, p, event.TypeScreenView, event.TypeVideoPlay)

	f := NewFlusher(p)
	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer f.Stop()

	waitFor(t, 5*time.Second, func() bool { return sender.batchCount() >= 1 })
	if got := len(sender.batch(0)); got != 2 {
		t.Errorf("delivered batch size = %d, want 2", got)
	}
}

func TestFlusherRestart(t *testing.T) {
	sender := &mockSender{}
	p := setupPipeline(t, sender)
	f := NewFlusher(p)

	for i := 0; i < 3; i++ {
		if err := f.Start(context.Background()); err != nil {
			t.Fatalf("Start() cycle %d failed: %v", i, err)
		}
		f.Stop()
	}
	if f.IsRunning() {
		t.Error("IsRunning() = true after final Stop")
	}
}
