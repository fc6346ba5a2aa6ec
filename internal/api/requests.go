// ShortDramaVerse Telemetry - Durable Analytics Event Pipeline
// Copyright 2026 ShortDramaVerse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shortdramaverse/telemetry

package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// maxRequestBody bounds how much of a request body is read. Event
// payloads are small; anything past this is a client bug.
const maxRequestBody = 1 << 20 // 1 MiB

// RecordEventRequest is the body of POST /api/v1/events.
type RecordEventRequest struct {
	EventType string                 `json:"eventType" validate:"required,max=128"`
	Data      map[string]interface{} `json:"data"`
}

// IdentifyRequest is the body of POST /api/v1/identify.
// A null userId clears the identity (logout).
type IdentifyRequest struct {
	UserID *int64 `json:"userId"`
}

// ConnectivityRequest is the body of POST /api/v1/connectivity.
type ConnectivityRequest struct {
	Offline bool `json:"offline"`
}

var validate = validator.New()

// decodeRequest reads and unmarshals a JSON request body into dst,
// then validates it. dst must be a pointer to a struct.
func decodeRequest(r *http.Request, dst interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(body) == 0 {
		return fmt.Errorf("empty request body")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("validate request: %w", err)
	}
	return nil
}
