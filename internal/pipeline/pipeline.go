// ShortDramaVerse Telemetry - Durable Analytics Event Pipeline
// Copyright 2026 ShortDramaVerse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shortdramaverse/telemetry

package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/shortdramaverse/telemetry/internal/event"
	"github.com/shortdramaverse/telemetry/internal/logging"
	"github.com/shortdramaverse/telemetry/internal/metrics"
	"github.com/shortdramaverse/telemetry/internal/queue"
	"github.com/shortdramaverse/telemetry/internal/transport"
)

// Pipeline is one analytics pipeline instance. It is an explicit,
// constructed value (queue and sender injected) so independent pipelines can
// coexist in tests; nothing in this package is process-global.
//
// Lifecycle: New -> Initialize -> (RecordEvent | Flush | ...) -> Cleanup.
// Record calls before Initialize completes are dropped with a warning;
// telemetry must never crash or block the host application.
//
// Concurrency: RecordEvent may be called from any goroutine. Events are
// handed to a single append worker, which serializes the append+persist
// sequence and evaluates the batch-size trigger. Only one delivery attempt
// is ever in flight (sending guard); triggers that fire meanwhile are
// no-ops and the next attempt naturally picks up whatever queued since.
type Pipeline struct {
	cfg    Config
	queue  *queue.Queue
	sender transport.Sender

	// Assigned once by Initialize.
	sessionID string
	device    *event.DeviceInfo

	// identity guards userID and offline.
	identity sync.Mutex
	userID   *int64
	offline  bool

	initialized atomic.Bool
	sending     atomic.Bool

	// recordGate guards accepting and the hand-off channel against a
	// concurrent Cleanup closing the channel mid-send.
	recordGate sync.RWMutex
	accepting  bool
	recordCh   chan *event.Event

	pending    sync.WaitGroup
	workerDone chan struct{}

	cleanupOnce sync.Once
}

// New constructs a pipeline over an opened queue and a sender.
// Call Initialize before recording.
func New(cfg Config, q *queue.Queue, sender transport.Sender) *Pipeline {
	d := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = d.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = d.FlushInterval
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = d.SendTimeout
	}
	if cfg.ShutdownFlushTimeout <= 0 {
		cfg.ShutdownFlushTimeout = d.ShutdownFlushTimeout
	}
	if cfg.RecordBuffer <= 0 {
		cfg.RecordBuffer = d.RecordBuffer
	}
	return &Pipeline{
		cfg:    cfg,
		queue:  q,
		sender: sender,
	}
}

// Initialize restores the persisted queue, resolves the device identity and
// snapshot, assigns the session ID, and starts the append worker.
// Idempotent. Recoverable failures (restore errors, device-id errors) are
// logged and degraded around, never returned: a telemetry pipeline that
// refuses to start would be worse than one with a fresh queue.
func (p *Pipeline) Initialize(ctx context.Context) error {
	if p.initialized.Load() {
		return nil
	}

	if err := p.queue.Restore(ctx); err != nil {
		logging.Warn().Err(err).Msg("queue restore failed; starting with empty queue")
	}

	deviceID, err := p.queue.DeviceID(ctx)
	if err != nil {
		deviceID = uuid.New().String()
		logging.Warn().Err(err).Msg("persisted device id unavailable; using ephemeral id")
	}
	p.device = event.CollectDeviceInfo(ctx, deviceID, p.cfg.Device)
	p.sessionID = uuid.New().String()

	p.recordCh = make(chan *event.Event, p.cfg.RecordBuffer)
	p.workerDone = make(chan struct{})
	p.recordGate.Lock()
	p.accepting = true
	p.recordGate.Unlock()
	go p.appendWorker()

	p.initialized.Store(true)

	depth := p.queue.Len()
	logging.Info().
		Str("session_id", p.sessionID).
		Str("device_id", deviceID).
		Int("restored_events", depth).
		Msg("analytics pipeline initialized")

	// Events left over from a previous run should not wait out a full
	// flush interval.
	if depth > 0 {
		go p.flush(context.Background(), "startup")
	}
	return nil
}

// RecordEvent stamps an event with the current session/user/device metadata
// and hands it to the append worker. Returns promptly; the durability write
// happens on the worker with its own error boundary.
func (p *Pipeline) RecordEvent(t event.Type, data map[string]any) {
	if !p.initialized.Load() {
		metrics.EventsDropped.WithLabelValues("uninitialized").Inc()
		logging.Warn().Str("event_type", string(t)).Msg("event recorded before initialization; dropped")
		return
	}
	if !t.Valid() {
		metrics.EventsDropped.WithLabelValues("unknown_type").Inc()
		logging.Warn().Str("event_type", string(t)).Msg("unknown event type; dropped")
		return
	}

	ev := event.New(t, data)
	ev.SessionID = p.sessionID
	ev.DeviceInfo = p.device

	p.identity.Lock()
	if p.userID != nil {
		uid := *p.userID
		ev.UserID = &uid
	}
	p.identity.Unlock()

	p.recordGate.RLock()
	defer p.recordGate.RUnlock()
	if !p.accepting {
		metrics.EventsDropped.WithLabelValues("shutting_down").Inc()
		return
	}
	metrics.EventsRecorded.WithLabelValues(string(t)).Inc()
	p.pending.Add(1)
	p.recordCh <- ev
}

// appendWorker serializes the append+persist sequence and evaluates the
// batch-size trigger after each append.
func (p *Pipeline) appendWorker() {
	defer close(p.workerDone)

	for ev := range p.recordCh {
		if err := p.queue.Append(context.Background(), ev); err != nil {
			// The event is still in memory; only its durability is lost.
			logging.Warn().
				Err(err).
				Str("event_type", string(ev.EventType)).
				Msg("durability write failed; event kept in memory")
		}
		depth := p.queue.Len()
		p.pending.Done()

		if depth >= p.cfg.BatchSize {
			go p.flush(context.Background(), "batch_size")
		}
	}
}

// AwaitIdle blocks until every event handed off so far has been appended
// and persisted. Teardown and test hook.
func (p *Pipeline) AwaitIdle(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetUserID updates the identity attached to subsequently recorded events.
// Pass nil on logout. Already-queued events are not altered.
func (p *Pipeline) SetUserID(id *int64) {
	p.identity.Lock()
	defer p.identity.Unlock()
	if id == nil {
		p.userID = nil
		return
	}
	uid := *id
	p.userID = &uid
}

// SetOfflineStatus flips the offline flag. While offline, no trigger
// attempts delivery; the queue keeps growing durably. Coming back online
// kicks an immediate flush so queued events don't wait out a full interval.
func (p *Pipeline) SetOfflineStatus(offline bool) {
	p.identity.Lock()
	was := p.offline
	p.offline = offline
	p.identity.Unlock()

	if was != offline {
		logging.Info().Bool("offline", offline).Msg("connectivity status changed")
	}
	if was && !offline && p.initialized.Load() && p.queue.Len() > 0 {
		go p.flush(context.Background(), "reconnect")
	}
}

// isOffline reports the current offline flag.
func (p *Pipeline) isOffline() bool {
	p.identity.Lock()
	defer p.identity.Unlock()
	return p.offline
}

// Flush attempts one delivery of everything currently queued. It resolves
// normally regardless of outcome: delivery failure leaves the queue intact
// and is observable via logs and metrics only, because callers treat
// analytics as best-effort.
func (p *Pipeline) Flush(ctx context.Context) {
	p.flush(ctx, "explicit")
}

// flush is the single delivery path shared by every trigger.
//
// Ordering: drain captures the queue in recorded order; the sending guard
// serializes attempts, so batch N is always drained (and committed or
// retained) before batch N+1.
func (p *Pipeline) flush(ctx context.Context, trigger string) {
	if !p.initialized.Load() {
		return
	}
	if p.isOffline() {
		metrics.FlushesSkipped.WithLabelValues("offline").Inc()
		logging.Debug().Str("trigger", trigger).Msg("flush skipped: offline")
		return
	}
	if !p.sending.CompareAndSwap(false, true) {
		metrics.FlushesSkipped.WithLabelValues("in_flight").Inc()
		return
	}
	defer p.sending.Store(false)

	batch := p.queue.Drain()
	if batch.Len() == 0 {
		metrics.FlushesSkipped.WithLabelValues("empty").Inc()
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, p.cfg.SendTimeout)
	defer cancel()

	if err := p.sender.Send(sendCtx, batch.Events); err != nil {
		logging.Warn().
			Err(err).
			Int("events", batch.Len()).
			Str("trigger", trigger).
			Msg("batch delivery failed; events retained for next trigger")
		return
	}

	if err := p.queue.CommitDrain(ctx, batch); err != nil {
		logging.Warn().Err(err).Msg("commit after delivery failed; duplicates possible on restart")
	}

	logging.Debug().
		Int("events", batch.Len()).
		Str("trigger", trigger).
		Msg("flush complete")
}

// Cleanup performs best-effort teardown: stop accepting, wait for
// outstanding appends to persist, then one bounded flush. The persisted
// queue is the recovery mechanism for anything that doesn't make it out.
// The queue store itself is closed by its owner, not here.
func (p *Pipeline) Cleanup() {
	p.cleanupOnce.Do(func() {
		if !p.initialized.Load() {
			return
		}

		p.recordGate.Lock()
		p.accepting = false
		close(p.recordCh)
		p.recordGate.Unlock()
		<-p.workerDone

		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ShutdownFlushTimeout)
		defer cancel()
		p.flush(ctx, "teardown")

		p.initialized.Store(false)
		logging.Info().Msg("analytics pipeline cleaned up")
	})
}

// Stats is a point-in-time snapshot of pipeline state for the stats
// endpoint and diagnostics.
type Stats struct {
	SessionID   string      `json:"sessionId"`
	Initialized bool        `json:"initialized"`
	Offline     bool        `json:"offline"`
	Sending     bool        `json:"sending"`
	UserSet     bool        `json:"userSet"`
	Queue       queue.Stats `json:"queue"`
}

// Stats returns the current pipeline snapshot.
func (p *Pipeline) Stats() Stats {
	p.identity.Lock()
	offline := p.offline
	userSet := p.userID != nil
	p.identity.Unlock()

	return Stats{
		SessionID:   p.sessionID,
		Initialized: p.initialized.Load(),
		Offline:     offline,
		Sending:     p.sending.Load(),
		UserSet:     userSet,
		Queue:       p.queue.Stats(),
	}
}

// Initialized reports whether Initialize has completed.
func (p *Pipeline) Initialized() bool {
	return p.initialized.Load()
}

// QueueLen returns the current queue depth.
func (p *Pipeline) QueueLen() int {
	return p.queue.Len()
}
