// ShortDramaVerse Telemetry - Durable Analytics Event Pipeline
// Copyright 2026 ShortDramaVerse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shortdramaverse/telemetry

// Package event defines the canonical analytics event format recorded by the
// pipeline and delivered to the ingestion endpoint.
package event

import (
	"fmt"
	"time"
)

// Type is the enumerated kind of an analytics event.
type Type string

// Recognized event types. Recording an unknown type is dropped with a
// warning rather than rejected with an error; telemetry never surfaces
// failures to the host application.
const (
	TypeScreenView        Type = "screen_view"
	TypeVideoPlay         Type = "video_play"
	TypeVideoPause        Type = "video_pause"
	TypeVideoSeek         Type = "video_seek"
	TypeVideoComplete     Type = "video_complete"
	TypeButtonClick       Type = "button_click"
	TypeSearch            Type = "search"
	TypeWatchlistAdd      Type = "watchlist_add"
	TypeWatchlistRemove   Type = "watchlist_remove"
	TypeRating            Type = "rating"
	TypePurchaseInitiated Type = "purchase_initiated"
	TypePurchaseCompleted Type = "purchase_completed"
	TypePurchaseFailed    Type = "purchase_failed"
	TypeError             Type = "error"
	TypeSessionStart      Type = "session_start"
	TypeSessionEnd        Type = "session_end"
	TypeAppBackground     Type = "app_background"
	TypeAppForeground     Type = "app_foreground"
)

var knownTypes = map[Type]struct{}{
	TypeScreenView:        {},
	TypeVideoPlay:         {},
	TypeVideoPause:        {},
	TypeVideoSeek:         {},
	TypeVideoComplete:     {},
	TypeButtonClick:       {},
	TypeSearch:            {},
	TypeWatchlistAdd:      {},
	TypeWatchlistRemove:   {},
	TypeRating:            {},
	TypePurchaseInitiated: {},
	TypePurchaseCompleted: {},
	TypePurchaseFailed:    {},
	TypeError:             {},
	TypeSessionStart:      {},
	TypeSessionEnd:        {},
	TypeAppBackground:     {},
	TypeAppForeground:     {},
}

// Valid reports whether t is a recognized event type.
func (t Type) Valid() bool {
	_, ok := knownTypes[t]
	return ok
}

// Event is one recorded occurrence. EventType, Timestamp, and SessionID are
// always present; UserID is present iff a user identity was associated with
// the pipeline at record time.
//
// JSON field names match the ingestion endpoint's wire format and must not
// change without coordinating with the collector.
type Event struct {
	// EventType is the enumerated kind tag.
	EventType Type `json:"eventType"`

	// Timestamp is milliseconds since epoch at creation time.
	// Immutable once set.
	Timestamp int64 `json:"timestamp"`

	// SessionID is assigned once per process lifetime.
	SessionID string `json:"sessionId"`

	// UserID is the authenticated user at record time, if any.
	UserID *int64 `json:"userId,omitempty"`

	// Data is an open, event-specific key-value payload. Not schema
	// validated beyond being JSON-serializable.
	Data map[string]any `json:"data"`

	// DeviceInfo is a snapshot captured once at pipeline initialization
	// and attached to every event by reference.
	DeviceInfo *DeviceInfo `json:"deviceInfo"`
}

// New creates an event stamped with the current wall clock.
// Session, user, and device metadata are attached by the pipeline.
func New(t Type, data map[string]any) *Event {
	if data == nil {
		data = map[string]any{}
	}
	return &Event{
		EventType: t,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// Validate checks the always-present fields.
func (e *Event) Validate() error {
	if !e.EventType.Valid() {
		return fmt.Errorf("unknown event type %q", e.EventType)
	}
	if e.Timestamp <= 0 {
		return fmt.Errorf("event timestamp not set")
	}
	if e.SessionID == "" {
		return fmt.Errorf("event session id not set")
	}
	return nil
}
