// ShortDramaVerse Telemetry - Durable Analytics Event Pipeline
// Copyright 2026 ShortDramaVerse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shortdramaverse/telemetry

// Package supervisor builds the suture supervision tree for the relay
// daemon. Services restart with backoff on failure; a crash in one
// layer does not take down the other.
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig holds supervisor tree configuration.
type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	FailureThreshold float64

	// FailureDecay is the rate at which failures decay in seconds.
	FailureDecay float64

	// FailureBackoff is the duration to wait when threshold is exceeded.
	FailureBackoff time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns suture's built-in defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree manages the relay's two supervision layers:
//
//   - delivery: the periodic flusher
//   - api: the local HTTP server
//
// A flusher crash leaves the API accepting and queueing events; the
// queue drains once the flusher restarts.
type Tree struct {
	root     *suture.Supervisor
	delivery *suture.Supervisor
	api      *suture.Supervisor
	config   TreeConfig
}

// NewTree creates a supervisor tree with the given configuration.
// Zero-valued config fields fall back to defaults.
func NewTree(logger *slog.Logger, config TreeConfig) *Tree {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5.0
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = 30.0
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = 15 * time.Second
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 10 * time.Second
	}

	// sutureslog's MustHook has a pointer receiver.
	handler := &sutureslog.Handler{Logger: logger}
	eventHook := handler.MustHook()

	rootSpec := suture.Spec{
		EventHook:        eventHook,
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	// Children inherit the EventHook from the root.
	childSpec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	root := suture.New("telemetryd", rootSpec)
	delivery := suture.New("delivery-layer", childSpec)
	api := suture.New("api-layer", childSpec)

	root.Add(delivery)
	root.Add(api)

	return &Tree{
		root:     root,
		delivery: delivery,
		api:      api,
		config:   config,
	}
}

// AddDeliveryService adds a service to the delivery layer supervisor.
func (t *Tree) AddDeliveryService(svc suture.Service) suture.ServiceToken {
	return t.delivery.Add(svc)
}

// AddAPIService adds a service to the API layer supervisor.
func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve starts the supervisor tree and blocks until the context is
// canceled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground starts the supervisor tree in a background goroutine
// and returns a channel that receives the final error and then closes.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport reports services that failed to stop within
// the shutdown timeout. Valid after Serve returns.
func (t *Tree) UnstoppedServiceReport() (suture.UnstoppedServiceReport, error) {
	return t.root.UnstoppedServiceReport()
}
