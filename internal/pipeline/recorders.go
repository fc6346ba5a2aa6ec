// ShortDramaVerse Telemetry - Durable Analytics Event Pipeline
// Copyright 2026 ShortDramaVerse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shortdramaverse/telemetry

package pipeline

import (
	"github.com/shortdramaverse/telemetry/internal/event"
	"github.com/shortdramaverse/telemetry/internal/logging"
	"github.com/shortdramaverse/telemetry/internal/metrics"
)

// Convenience recorders. These are thin wrappers that shape the payload
// consistently and go through RecordEvent, so they inherit the full
// append/durability contract.

// RecordScreenView records a screen view event.
func (p *Pipeline) RecordScreenView(name string) {
	p.RecordEvent(event.TypeScreenView, event.ScreenViewData(name))
}

// RecordVideoEvent records a playback lifecycle event. position is the
// playhead in seconds; pass nil when not applicable.
func (p *Pipeline) RecordVideoEvent(kind event.VideoKind, episodeID, seriesID int64, position *float64) {
	t, ok := event.TypeForVideoKind(kind)
	if !ok {
		metrics.EventsDropped.WithLabelValues("unknown_type").Inc()
		logging.Warn().Str("kind", string(kind)).Msg("unknown video event kind; dropped")
		return
	}
	p.RecordEvent(t, event.VideoData(episodeID, seriesID, position))
}

// RecordSearch records a search event. filters may be nil.
func (p *Pipeline) RecordSearch(query string, resultCount int, filters map[string]any) {
	p.RecordEvent(event.TypeSearch, event.SearchData(query, resultCount, filters))
}

// RecordError records an application error event. stack may be empty.
func (p *Pipeline) RecordError(name, message, stack string) {
	p.RecordEvent(event.TypeError, event.ErrorData(name, message, stack))
}
