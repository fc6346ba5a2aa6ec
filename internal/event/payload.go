// ShortDramaVerse Telemetry - Durable Analytics Event Pipeline
// Copyright 2026 ShortDramaVerse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shortdramaverse/telemetry

package event

// VideoKind is the playback lifecycle phase of a video event.
type VideoKind string

const (
	VideoPlay     VideoKind = "play"
	VideoPause    VideoKind = "pause"
	VideoSeek     VideoKind = "seek"
	VideoComplete VideoKind = "complete"
)

// TypeForVideoKind maps a playback phase to its event type.
// Returns ("", false) for unknown kinds.
func TypeForVideoKind(kind VideoKind) (Type, bool) {
	switch kind {
	case VideoPlay:
		return TypeVideoPlay, true
	case VideoPause:
		return TypeVideoPause, true
	case VideoSeek:
		return TypeVideoSeek, true
	case VideoComplete:
		return TypeVideoComplete, true
	default:
		return "", false
	}
}

// Payload builders for the convenience recorders. These exist so every call
// site shapes Data the same way; they are the only place these key names
// appear.

// ScreenViewData shapes the payload for a screen view event.
func ScreenViewData(name string) map[string]any {
	return map[string]any{"screenName": name}
}

// VideoData shapes the payload for a playback event. position is the
// playhead in seconds; pass nil when not applicable (e.g. play start).
func VideoData(episodeID, seriesID int64, position *float64) map[string]any {
	data := map[string]any{
		"episodeId": episodeID,
		"seriesId":  seriesID,
	}
	if position != nil {
		data["position"] = *position
	}
	return data
}

// SearchData shapes the payload for a search event. filters may be nil.
func SearchData(query string, resultCount int, filters map[string]any) map[string]any {
	data := map[string]any{
		"query":       query,
		"resultCount": resultCount,
	}
	if len(filters) > 0 {
		data["filters"] = filters
	}
	return data
}

// ErrorData shapes the payload for an application error event. stack may be
// empty.
func ErrorData(name, message, stack string) map[string]any {
	data := map[string]any{
		"errorName":    name,
		"errorMessage": message,
	}
	if stack != "" {
		data["stack"] = stack
	}
	return data
}
