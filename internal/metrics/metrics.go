// ShortDramaVerse Telemetry - Durable Analytics Event Pipeline
// Copyright 2026 ShortDramaVerse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shortdramaverse/telemetry

// Package metrics exposes Prometheus instrumentation for the pipeline:
// recorder throughput, queue depth and durability errors, delivery batch
// outcomes, and relay API traffic.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Recorder metrics
	EventsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_events_recorded_total",
			Help: "Total number of events accepted by the recorder",
		},
		[]string{"event_type"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_events_dropped_total",
			Help: "Total number of events dropped before queueing",
		},
		[]string{"reason"}, // "uninitialized", "unknown_type"
	)

	// Queue metrics
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "telemetry_queue_depth",
			Help: "Current number of events awaiting delivery",
		},
	)

	QueueAppends = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telemetry_queue_appends_total",
			Help: "Total number of events appended to the durable queue",
		},
	)

	QueuePersistErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telemetry_queue_persist_errors_total",
			Help: "Total number of failed durability writes (event kept in memory)",
		},
	)

	QueueRestoredEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telemetry_queue_restored_events_total",
			Help: "Total number of events restored from disk at startup",
		},
	)

	QueueSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "telemetry_queue_db_size_bytes",
			Help: "Estimated size of the queue database on disk",
		},
	)

	// Delivery metrics
	BatchesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telemetry_batches_sent_total",
			Help: "Total number of batches acknowledged by the ingestion endpoint",
		},
	)

	BatchesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_batches_failed_total",
			Help: "Total number of delivery attempts that did not succeed",
		},
		[]string{"reason"}, // "network", "status", "breaker_open"
	)

	EventsDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telemetry_events_delivered_total",
			Help: "Total number of events in acknowledged batches",
		},
	)

	SendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "telemetry_send_duration_seconds",
			Help:    "Duration of batch delivery attempts in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	FlushesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_flushes_skipped_total",
			Help: "Total number of flush triggers that did not attempt delivery",
		},
		[]string{"reason"}, // "offline", "in_flight", "empty"
	)

	// Relay API metrics
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_api_requests_total",
			Help: "Total number of relay API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "telemetry_api_request_duration_seconds",
			Help:    "Relay API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordAPIRequest records one relay API request observation.
func RecordAPIRequest(method, endpoint string, status int, duration time.Duration) {
	APIRequests.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// ObserveSend records the outcome of one delivery attempt.
func ObserveSend(start time.Time, events int, err error, reason string) {
	SendDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		BatchesFailed.WithLabelValues(reason).Inc()
		return
	}
	BatchesSent.Inc()
	EventsDelivered.Add(float64(events))
}
