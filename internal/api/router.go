// ShortDramaVerse Telemetry - Durable Analytics Event Pipeline
// Copyright 2026 ShortDramaVerse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shortdramaverse/telemetry

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router wires the relay's handlers and middleware into an http.Handler.
type Router struct {
	handler    *Handler
	middleware *Middleware
}

// NewRouter creates a router from a handler and middleware factory.
// A nil middleware uses the secure defaults.
func NewRouter(handler *Handler, middleware *Middleware) *Router {
	if middleware == nil {
		middleware = NewMiddleware(nil)
	}
	return &Router{
		handler:    handler,
		middleware: middleware,
	}
}

// Setup builds the route tree.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.middleware.CORS())
	r.Use(Instrument)

	// Health endpoints stay outside the rate limiter so probes never
	// get throttled.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.middleware.RateLimit())

		r.Post("/events", router.handler.RecordEvent)
		r.Post("/identify", router.handler.Identify)
		r.Post("/connectivity", router.handler.Connectivity)
		r.Post("/flush", router.handler.Flush)
		r.Get("/stats", router.handler.Stats)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
