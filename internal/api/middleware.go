// ShortDramaVerse Telemetry - Durable Analytics Event Pipeline
// Copyright 2026 ShortDramaVerse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shortdramaverse/telemetry

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/shortdramaverse/telemetry/internal/metrics"
)

// MiddlewareConfig holds configuration for the middleware factories.
type MiddlewareConfig struct {
	CORSAllowedOrigins []string

	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
}

// DefaultMiddlewareConfig returns a secure default configuration. CORS
// origins default to empty, requiring explicit configuration.
func DefaultMiddlewareConfig() *MiddlewareConfig {
	return &MiddlewareConfig{
		CORSAllowedOrigins: []string{},
		RateLimitRequests:  300,
		RateLimitWindow:    time.Minute,
	}
}

// Middleware provides Chi-compatible middleware built from the Chi
// ecosystem packages.
type Middleware struct {
	config *MiddlewareConfig
	cors   func(http.Handler) http.Handler
}

// NewMiddleware creates a middleware factory with the given configuration.
func NewMiddleware(config *MiddlewareConfig) *Middleware {
	if config == nil {
		config = DefaultMiddlewareConfig()
	}

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins: config.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         86400,
	})

	return &Middleware{
		config: config,
		cors:   corsHandler,
	}
}

// CORS returns the go-chi/cors middleware.
func (m *Middleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimit returns an IP-keyed go-chi/httprate middleware, or a no-op
// when rate limiting is disabled.
func (m *Middleware) RateLimit() func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return httprate.Limit(
		m.config.RateLimitRequests,
		m.config.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
	)
}

// Instrument records per-request Prometheus metrics keyed by the Chi
// route pattern so path parameters do not explode label cardinality.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		metrics.RecordAPIRequest(r.Method, pattern, ww.Status(), time.Since(start))
	})
}
