// ShortDramaVerse Telemetry - Durable Analytics Event Pipeline
// Copyright 2026 ShortDramaVerse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shortdramaverse/telemetry

package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/shortdramaverse/telemetry/internal/event"
)

func TestConvenienceRecorders(t *testing.T) {
	sender := &mockSender{}
	p := setupPipeline(t, sender)

	pos := 12.5
	p.RecordScreenView("series-detail")
	p.RecordVideoEvent(event.VideoPause, 101, 7, &pos)
	p.RecordSearch("ceo romance", 8, nil)
	p.RecordError("NetworkError", "request timed out", "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.AwaitIdle(ctx); err != nil {
		t.Fatalf("AwaitIdle() failed: %v", err)
	}
	p.Flush(context.Background())

	if sender.batchCount() != 1 {
		t.Fatalf("batches = %d, want 1", sender.batchCount())
	}
	batch := sender.batch(0)
	if len(batch) != 4 {
		t.Fatalf("batch size = %d, want 4", len(batch))
	}

	if batch[0].EventType != event.TypeScreenView || batch[0].Data["screenName"] != "series-detail" {
		t.Errorf("screen view event = %s %v", batch[0].EventType, batch[0].Data)
	}
	if batch[1].EventType != event.TypeVideoPause || batch[1].Data["position"] != 12.5 {
		t.Errorf("video event = %s %v", batch[1].EventType, batch[1].Data)
	}
	if batch[2].EventType != event.TypeSearch || batch[2].Data["resultCount"] != 8 {
		t.Errorf("search event = %s %v", batch[2].EventType, batch[2].Data)
	}
	if batch[3].EventType != event.TypeError || batch[3].Data["errorName"] != "NetworkError" {
		t.Errorf("error event = %s %v", batch[3].EventType, batch[3].Data)
	}
}

func TestRecordVideoEventUnknownKindDropped(t *testing.T) {
	sender := &mockSender{}
	p := setupPipeline(t, sender)

	p.RecordVideoEvent(event.VideoKind("rewind"), 1, 1, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.AwaitIdle(ctx); err != nil {
		t.Fatalf("AwaitIdle() failed: %v", err)
	}
	if got := p.QueueLen(); got != 0 {
		t.Errorf("QueueLen() = %d, want 0", got)
	}
}
