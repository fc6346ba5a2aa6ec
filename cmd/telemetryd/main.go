// ShortDramaVerse Telemetry - Durable Analytics Event Pipeline
// Copyright 2026 ShortDramaVerse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shortdramaverse/telemetry

// Package main is the entry point for the telemetryd relay daemon.
//
// telemetryd is a local analytics relay for ShortDramaVerse apps. App
// processes submit events to its loopback HTTP API; the relay stamps
// session, device, and user identity onto each event, persists it to a
// BadgerDB-backed durable queue, and forwards batches to the ingestion
// endpoint. Events survive crashes and are retained across delivery
// failures, giving at-least-once delivery in queue order.
//
// # Startup Order
//
//  1. Configuration: layered load via Koanf v2 (defaults, YAML, env)
//  2. Logging: zerolog, configured from the loaded settings
//  3. Durable queue: BadgerDB open plus restore of persisted events
//  4. Transport: HTTP sender with circuit breaker
//  5. Pipeline: session start, device snapshot, append worker
//  6. Supervisor tree: interval flusher and HTTP server under suture
//
// # Configuration
//
// Highest priority wins: environment variables, then the config file
// (telemetryd.yaml, or TELEMETRY_CONFIG), then built-in defaults. The
// only required setting is the ingestion endpoint:
//
//	export INGEST_ENDPOINT=https://ingest.shortdramaverse.com
//	./telemetryd
//
// # Signal Handling
//
// On SIGINT and SIGTERM the daemon stops accepting events, performs a
// bounded final flush, and closes the queue. Undelivered events remain
// persisted and are restored on the next start.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shortdramaverse/telemetry/internal/api"
	"github.com/shortdramaverse/telemetry/internal/config"
	"github.com/shortdramaverse/telemetry/internal/event"
	"github.com/shortdramaverse/telemetry/internal/logging"
	"github.com/shortdramaverse/telemetry/internal/pipeline"
	"github.com/shortdramaverse/telemetry/internal/queue"
	"github.com/shortdramaverse/telemetry/internal/supervisor"
	"github.com/shortdramaverse/telemetry/internal/supervisor/services"
	"github.com/shortdramaverse/telemetry/internal/transport"
)

func main() {
	// Load configuration first to get logging settings.
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("endpoint", cfg.Ingest.Endpoint).
		Str("queue_path", cfg.Queue.Path).
		Int("batch_size", cfg.Pipeline.BatchSize).
		Dur("flush_interval", cfg.Pipeline.FlushInterval).
		Msg("Starting telemetryd")

	q, err := queue.Open(cfg.Queue)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open durable queue")
	}
	defer func() {
		if err := q.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing queue")
		}
	}()

	sender := transport.NewHTTPSender(cfg.Ingest)

	pipeCfg := cfg.Pipeline
	pipeCfg.Device = event.DeviceOverrides{
		AppVersion:   cfg.App.Version,
		Platform:     cfg.App.Platform,
		DeviceModel:  cfg.App.DeviceModel,
		ScreenWidth:  cfg.App.ScreenWidth,
		ScreenHeight: cfg.App.ScreenHeight,
		Language:     cfg.App.Language,
		Timezone:     cfg.App.Timezone,
	}

	p := pipeline.New(pipeCfg, q, sender)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Initialize(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize pipeline")
	}
	defer p.Cleanup()

	handler := api.NewHandler(p)
	middleware := api.NewMiddleware(&api.MiddlewareConfig{
		CORSAllowedOrigins: cfg.Server.CORSOrigins,
		RateLimitRequests:  cfg.Server.RateLimitRequests,
		RateLimitWindow:    cfg.Server.RateLimitWindow,
		RateLimitDisabled:  cfg.Server.RateLimitDisabled,
	})
	router := api.NewRouter(handler, middleware)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Bridge zerolog to slog for sutureslog.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	tree.AddDeliveryService(services.NewFlusherService(pipeline.NewFlusher(p)))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("Services added to supervisor tree")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	logging.Info().Msg("Relay stopped gracefully")
}
