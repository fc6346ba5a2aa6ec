// ShortDramaVerse Telemetry - Durable Analytics Event Pipeline
// Copyright 2026 ShortDramaVerse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shortdramaverse/telemetry

// Package api provides the local HTTP surface of the telemetry relay.
// App processes on the same host submit events here; the relay queues
// them durably and forwards batches upstream.
package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/shortdramaverse/telemetry/internal/logging"
)

// APIResponse is the standardized response wrapper for all endpoints.
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data,omitempty"`
	Error    *APIError   `json:"error,omitempty"`
	Metadata Metadata    `json:"metadata"`
}

// APIError carries a machine-readable code plus a human-readable message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Metadata contains response metadata.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
}

// Error codes for API responses.
const (
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	ErrCodeValidationError  = "VALIDATION_ERROR"
	ErrCodeNotReady         = "NOT_READY"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

func respondJSON(w http.ResponseWriter, status int, response *APIResponse) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", code).Err(err).Msg("API error")
	}

	respondJSON(w, status, &APIResponse{
		Status: "error",
		Error: &APIError{
			Code:    code,
			Message: message,
		},
		Metadata: Metadata{Timestamp: time.Now()},
	})
}

func respondSuccess(w http.ResponseWriter, status int, data interface{}) {
	respondJSON(w, status, &APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: Metadata{Timestamp: time.Now()},
	})
}
