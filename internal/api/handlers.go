// ShortDramaVerse Telemetry - Durable Analytics Event Pipeline
// Copyright 2026 ShortDramaVerse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shortdramaverse/telemetry

package api

import (
	"net/http"
	"time"

	"github.com/shortdramaverse/telemetry/internal/event"
	"github.com/shortdramaverse/telemetry/internal/pipeline"
)

// Handler serves the relay's HTTP endpoints on top of a pipeline.
type Handler struct {
	pipeline  *pipeline.Pipeline
	startTime time.Time
}

// NewHandler creates a handler bound to the given pipeline.
func NewHandler(p *pipeline.Pipeline) *Handler {
	return &Handler{
		pipeline:  p,
		startTime: time.Now(),
	}
}

// RecordEvent handles POST /api/v1/events.
// The relay stamps timestamp, session, device, and user identity; the
// caller supplies only the event type and its payload.
func (h *Handler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	var req RecordEventRequest
	if err := decodeRequest(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidationError, "Invalid event payload", err)
		return
	}

	t := event.Type(req.EventType)
	if !t.Valid() {
		respondError(w, http.StatusBadRequest, ErrCodeValidationError, "Unknown event type: "+req.EventType, nil)
		return
	}

	// Recording is fire-and-forget. The pipeline never surfaces
	// persistence failures to callers; they are logged and counted.
	h.pipeline.RecordEvent(t, req.Data)

	respondSuccess(w, http.StatusAccepted, map[string]interface{}{
		"accepted": true,
	})
}

// Identify handles POST /api/v1/identify. A null userId clears the
// current identity; subsequent events carry no userId field.
func (h *Handler) Identify(w http.ResponseWriter, r *http.Request) {
	var req IdentifyRequest
	if err := decodeRequest(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidationError, "Invalid identify payload", err)
		return
	}

	h.pipeline.SetUserID(req.UserID)

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"userSet": req.UserID != nil,
	})
}

// Connectivity handles POST /api/v1/connectivity. Marking the relay
// offline suppresses delivery; events continue to queue durably.
func (h *Handler) Connectivity(w http.ResponseWriter, r *http.Request) {
	var req ConnectivityRequest
	if err := decodeRequest(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidationError, "Invalid connectivity payload", err)
		return
	}

	h.pipeline.SetOfflineStatus(req.Offline)

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"offline": req.Offline,
	})
}

// Flush handles POST /api/v1/flush. The flush itself never fails from
// the caller's perspective; delivery errors retain the batch and are
// visible in the queue depth returned here.
func (h *Handler) Flush(w http.ResponseWriter, r *http.Request) {
	h.pipeline.Flush(r.Context())

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"queueDepth": h.pipeline.QueueLen(),
	})
}

// Stats handles GET /api/v1/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.pipeline.Stats()

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"sessionId":   stats.SessionID,
		"initialized": stats.Initialized,
		"offline":     stats.Offline,
		"sending":     stats.Sending,
		"userSet":     stats.UserSet,
		"queue": map[string]interface{}{
			"depth":          stats.Queue.Depth,
			"totalAppends":   stats.Queue.TotalAppends,
			"totalCommits":   stats.Queue.TotalCommits,
			"restoredEvents": stats.Queue.RestoredCount,
			"dbSizeBytes":    stats.Queue.DBSizeBytes,
		},
		"uptimeSeconds": time.Since(h.startTime).Seconds(),
	})
}

// HealthLive handles GET /api/v1/health/live. Returns 200 whenever the
// process is alive, regardless of pipeline state.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"status": "alive",
	})
}

// HealthReady handles GET /api/v1/health/ready. Ready means the
// pipeline has initialized: the queue is open and restored.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if !h.pipeline.Initialized() {
		respondError(w, http.StatusServiceUnavailable, ErrCodeNotReady, "Pipeline not initialized", nil)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"status": "ready",
	})
}
