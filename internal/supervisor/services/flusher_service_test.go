// ShortDramaVerse Telemetry - Durable Analytics Event Pipeline
// Copyright 2026 ShortDramaVerse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shortdramaverse/telemetry

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// mockFlusher is a test double for the StartStopper interface.
type mockFlusher struct {
	startErr   error
	running    atomic.Bool
	startCount atomic.Int32
	stopCount  atomic.Int32
}

func (m *mockFlusher) Start(ctx context.Context) error {
	m.startCount.Add(1)
	if m.startErr != nil {
		return m.startErr
	}
	m.running.Store(true)
	return nil
}

func (m *mockFlusher) Stop() {
	m.stopCount.Add(1)
	m.running.Store(false)
}

func (m *mockFlusher) IsRunning() bool {
	return m.running.Load()
}

func TestFlusherServiceLifecycle(t *testing.T) {
	flusher := &mockFlusher{}
	svc := NewFlusherService(flusher)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	if !flusher.IsRunning() {
		t.Error("flusher not started by Serve")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}

	if flusher.stopCount.Load() != 1 {
		t.Errorf("Stop called %d times, want 1", flusher.stopCount.Load())
	}
}

func TestFlusherServiceStartFailure(t *testing.T) {
	flusher := &mockFlusher{startErr: errors.New("start broken")}
	svc := NewFlusherService(flusher)

	if err := svc.Serve(context.Background()); err == nil || !errors.Is(err, flusher.startErr) {
		t.Errorf("Serve() = %v, want wrapped start error", err)
	}
	if flusher.stopCount.Load() != 0 {
		t.Errorf("Stop called %d times after failed start, want 0", flusher.stopCount.Load())
	}
}

func TestFlusherServiceString(t *testing.T) {
	svc := NewFlusherService(&mockFlusher{})
	if got := svc.String(); got != "interval-flusher" {
		t.Errorf("String() = %s, want interval-flusher", got)
	}
}
