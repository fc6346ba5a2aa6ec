// ShortDramaVerse Telemetry - Durable Analytics Event Pipeline
// Copyright 2026 ShortDramaVerse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shortdramaverse/telemetry

// Package services adapts the relay's components to suture's Serve
// pattern so they can run under the supervision tree.
package services

import (
	"context"
	"fmt"
)

// StartStopper matches the flusher's lifecycle. Keeping this as an
// interface avoids importing the pipeline package and allows mocks in
// tests.
type StartStopper interface {
	Start(ctx context.Context) error
	Stop()
	IsRunning() bool
}

// FlusherService wraps the interval flusher as a supervised service.
//
// It adapts the Start/Stop lifecycle to suture's Serve pattern:
//  1. Start(ctx) spawns the ticker goroutine
//  2. Serve blocks until the context is canceled
//  3. Stop() waits for the goroutine to exit
type FlusherService struct {
	flusher StartStopper
	name    string
}

// NewFlusherService creates a flusher service wrapper.
func NewFlusherService(flusher StartStopper) *FlusherService {
	return &FlusherService{
		flusher: flusher,
		name:    "interval-flusher",
	}
}

// Serve implements suture.Service. If Start fails, the error is
// returned immediately and suture restarts the service per its backoff
// policy.
func (s *FlusherService) Serve(ctx context.Context) error {
	if err := s.flusher.Start(ctx); err != nil {
		return fmt.Errorf("flusher start failed: %w", err)
	}

	<-ctx.Done()

	// Blocks until the ticker goroutine exits.
	s.flusher.Stop()

	return ctx.Err()
}

// String implements fmt.Stringer. Suture uses this to identify the
// service in log messages.
func (s *FlusherService) String() string {
	return s.name
}
