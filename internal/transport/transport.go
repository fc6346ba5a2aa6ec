// ShortDramaVerse Telemetry - Durable Analytics Event Pipeline
// Copyright 2026 ShortDramaVerse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shortdramaverse/telemetry

// Package transport delivers event batches to the analytics ingestion
// endpoint. Delivery is all-or-nothing per batch: any network error,
// timeout, or non-2xx response means "not delivered" and the caller keeps
// the batch queued. The transport never mutates queue state and carries no
// retry loop of its own; retry is the pipeline's next trigger.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/shortdramaverse/telemetry/internal/event"
	"github.com/shortdramaverse/telemetry/internal/logging"
	"github.com/shortdramaverse/telemetry/internal/metrics"
)

// eventsPath is the ingestion endpoint's batch route, relative to the
// configured base URL.
const eventsPath = "/analytics/events"

// Sender delivers one batch of events.
type Sender interface {
	// Send issues a single request carrying the full batch. A nil return
	// means the endpoint acknowledged the batch (2xx); any error means the
	// batch was not delivered and must remain queued.
	Send(ctx context.Context, events []*event.Event) error
}

// Config holds transport configuration.
type Config struct {
	// Endpoint is the ingestion base URL, e.g. https://api.example.com.
	Endpoint string `koanf:"endpoint" validate:"required,url"`

	// APIKey is sent as a bearer token when non-empty.
	APIKey string `koanf:"api_key"`

	// Timeout bounds a single delivery attempt.
	Timeout time.Duration `koanf:"timeout"`

	// Breaker configures the circuit breaker guarding the endpoint.
	Breaker BreakerConfig `koanf:"breaker"`
}

// BreakerConfig holds circuit breaker settings.
type BreakerConfig struct {
	// Enabled turns the breaker on. When disabled every trigger attempts
	// a real request.
	Enabled bool `koanf:"enabled"`

	// FailureThreshold is the number of consecutive failures that trips
	// the breaker.
	FailureThreshold uint32 `koanf:"failure_threshold"`

	// OpenTimeout is how long the breaker stays open before allowing a
	// probe request.
	OpenTimeout time.Duration `koanf:"open_timeout"`
}

// DefaultConfig returns transport defaults.
func DefaultConfig() Config {
	return Config{
		Endpoint: "",
		Timeout:  30 * time.Second,
		Breaker: BreakerConfig{
			Enabled:          true,
			FailureThreshold: 5,
			OpenTimeout:      60 * time.Second,
		},
	}
}

// envelope is the wire shape of one batch request.
type envelope struct {
	Events []*event.Event `json:"events"`
}

// HTTPSender posts batches to the ingestion endpoint over HTTP.
type HTTPSender struct {
	cfg     Config
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewHTTPSender creates a sender for the configured endpoint.
func NewHTTPSender(cfg Config) *HTTPSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	s := &HTTPSender{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}

	if cfg.Breaker.Enabled {
		s.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:    "analytics-ingest",
			Timeout: cfg.Breaker.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.Breaker.FailureThreshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logging.Warn().
					Str("breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("ingest circuit breaker state change")
			},
		})
	}

	return s
}

// Send implements Sender. All failure modes are uniform: the caller only
// needs to know the batch was not acknowledged.
func (s *HTTPSender) Send(ctx context.Context, events []*event.Event) error {
	if len(events) == 0 {
		return nil
	}

	start := time.Now()
	var err error
	if s.breaker != nil {
		_, err = s.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, s.post(ctx, events)
		})
	} else {
		err = s.post(ctx, events)
	}
	metrics.ObserveSend(start, len(events), err, failureReason(err))

	if err == nil {
		logging.Debug().
			Int("events", len(events)).
			Dur("duration", time.Since(start)).
			Msg("batch delivered")
	}
	return err
}

// statusError reports a non-2xx response.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("ingest endpoint returned status %d", e.code)
}

// post performs the actual batch request.
func (s *HTTPSender) post(ctx context.Context, events []*event.Event) error {
	body, err := json.Marshal(envelope{Events: events})
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	url := s.cfg.Endpoint + eventsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post batch: %w", err)
	}
	defer resp.Body.Close()

	// Response body is ignored on success, but drain it so the connection
	// can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode}
	}
	return nil
}

// failureReason classifies a delivery error for metrics labels.
func failureReason(err error) string {
	var se *statusError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		return "breaker_open"
	case errors.As(err, &se):
		return "status"
	default:
		return "network"
	}
}
