// ShortDramaVerse Telemetry - Durable Analytics Event Pipeline
// Copyright 2026 ShortDramaVerse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shortdramaverse/telemetry

package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/shortdramaverse/telemetry/internal/event"
	"github.com/shortdramaverse/telemetry/internal/logging"
	"github.com/shortdramaverse/telemetry/internal/metrics"
)

// Key layout. Event keys embed a zero-padded monotonic sequence number so
// BadgerDB's lexical key order matches insertion order.
const (
	prefixEvent = "event:"
	keyDeviceID = "device:id"
)

// Errors
var (
	// ErrQueueClosed is returned for operations on a closed queue.
	ErrQueueClosed = errors.New("queue is closed")

	// ErrNilEvent is returned when a nil event is appended.
	ErrNilEvent = errors.New("event cannot be nil")
)

// entry pairs an in-memory event with its persisted sequence number.
type entry struct {
	seq uint64
	ev  *event.Event
}

// Queue is a durable FIFO buffer of not-yet-delivered events.
//
// The in-memory slice is the source of truth for ordering and contents; the
// BadgerDB copy is a durable snapshot that is never ahead of memory. An
// event whose durability write failed stays queued in memory (it is lost on
// crash, but never silently while the process lives).
//
// The drain/commit split is deliberate: Drain captures the contents without
// removing them, and CommitDrain removes exactly the captured entries after
// confirmed delivery. Events appended while a send is in flight are
// untouched by the commit.
type Queue struct {
	db  *badger.DB
	cfg Config

	mu      sync.Mutex
	entries []entry
	nextSeq uint64
	closed  bool

	// Statistics
	totalAppends  atomic.Int64
	totalCommits  atomic.Int64
	restoredCount atomic.Int64
}

// Open creates (or reopens) the queue storage at the configured path.
// Call Restore before appending to load any events persisted by a previous
// run.
func Open(cfg Config) (*Queue, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("queue path is required")
	}
	if cfg.NumCompactors < 2 {
		cfg.NumCompactors = 2
	}
	if cfg.CloseTimeout == 0 {
		cfg.CloseTimeout = 30 * time.Second
	}

	opts := badger.DefaultOptions(cfg.Path)
	opts.SyncWrites = cfg.SyncWrites
	if cfg.MemTableSize > 0 {
		opts.MemTableSize = cfg.MemTableSize
	}
	if cfg.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = cfg.ValueLogFileSize
	}
	opts.NumCompactors = cfg.NumCompactors
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	q := &Queue{
		db:      db,
		cfg:     cfg,
		nextSeq: 1,
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("sync_writes", cfg.SyncWrites).
		Msg("event queue opened")
	return q, nil
}

// Restore loads persisted events into memory in insertion order.
// Called once at pipeline initialization. Entries that fail to parse are
// logged and skipped; restore never fails the caller over corrupt data.
func (q *Queue) Restore(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	var (
		restored []entry
		skipped  int
		maxSeq   uint64
	)

	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixEvent)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			item := it.Item()
			seq, err := seqFromKey(item.Key())
			if err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("queue restore: malformed key, skipping")
				skipped++
				continue
			}

			var ev *event.Event
			err = item.Value(func(val []byte) error {
				var uerr error
				ev, uerr = event.Unmarshal(val)
				return uerr
			})
			if err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("queue restore: unparsable entry, skipping")
				skipped++
				continue
			}

			restored = append(restored, entry{seq: seq, ev: ev})
			if seq > maxSeq {
				maxSeq = seq
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("iterate persisted events: %w", err)
	}

	q.entries = restored
	if maxSeq >= q.nextSeq {
		q.nextSeq = maxSeq + 1
	}
	q.restoredCount.Store(int64(len(restored)))
	metrics.QueueRestoredEvents.Add(float64(len(restored)))
	metrics.QueueDepth.Set(float64(len(restored)))

	if len(restored) > 0 || skipped > 0 {
		logging.Info().
			Int("restored", len(restored)).
			Int("skipped", skipped).
			Msg("event queue restored from disk")
	}
	return nil
}

// Append pushes an event to the tail and persists it. The in-memory append
// happens unconditionally; a persistence failure is returned so the caller
// can log it, but the event stays queued.
func (q *Queue) Append(ctx context.Context, ev *event.Event) error {
	if ev == nil {
		return ErrNilEvent
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	seq := q.nextSeq
	q.nextSeq++
	q.entries = append(q.entries, entry{seq: seq, ev: ev})
	q.totalAppends.Add(1)
	metrics.QueueAppends.Inc()
	metrics.QueueDepth.Set(float64(len(q.entries)))

	data, err := event.Marshal(ev)
	if err != nil {
		metrics.QueuePersistErrors.Inc()
		return fmt.Errorf("marshal event: %w", err)
	}

	err = q.db.Update(func(txn *badger.Txn) error {
		return txn.Set(seqKey(seq), data)
	})
	if err != nil {
		metrics.QueuePersistErrors.Inc()
		return fmt.Errorf("persist event: %w", err)
	}
	return nil
}

// Batch is the set of events captured by one Drain call for a single
// delivery attempt.
type Batch struct {
	Events []*event.Event
	seqs   []uint64
}

// Len returns the number of events in the batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Events)
}

// Drain atomically captures the current queue contents for delivery without
// removing them. The queue is untouched until CommitDrain confirms success.
func (q *Queue) Drain() *Batch {
	q.mu.Lock()
	defer q.mu.Unlock()

	b := &Batch{
		Events: make([]*event.Event, len(q.entries)),
		seqs:   make([]uint64, len(q.entries)),
	}
	for i, e := range q.entries {
		b.Events[i] = e.ev
		b.seqs[i] = e.seq
	}
	return b
}

// CommitDrain removes exactly the events captured by the preceding Drain,
// both from memory and from disk. Events appended after the drain remain
// queued. Called only after confirmed successful delivery.
func (q *Queue) CommitDrain(ctx context.Context, b *Batch) error {
	if b.Len() == 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	// Drained entries are always a prefix of the current queue: appends go
	// to the tail and the single in-flight send guard prevents overlapping
	// drains.
	committed := make(map[uint64]struct{}, len(b.seqs))
	for _, seq := range b.seqs {
		committed[seq] = struct{}{}
	}
	remaining := q.entries[:0]
	for _, e := range q.entries {
		if _, ok := committed[e.seq]; !ok {
			remaining = append(remaining, e)
		}
	}
	q.entries = remaining
	q.totalCommits.Add(int64(len(b.seqs)))
	metrics.QueueDepth.Set(float64(len(q.entries)))

	err := q.db.Update(func(txn *badger.Txn) error {
		for _, seq := range b.seqs {
			if err := txn.Delete(seqKey(seq)); err != nil {
				return fmt.Errorf("delete event %d: %w", seq, err)
			}
		}
		return nil
	})
	if err != nil {
		// Memory is already trimmed; the stale persisted entries would be
		// re-restored (and re-sent) after a crash, which at-least-once
		// delivery permits.
		return fmt.Errorf("remove committed events: %w", err)
	}
	return nil
}

// Len returns the number of events currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Stats contains queue metrics for monitoring.
type Stats struct {
	Depth         int   `json:"depth"`
	TotalAppends  int64 `json:"totalAppends"`
	TotalCommits  int64 `json:"totalCommits"`
	RestoredCount int64 `json:"restoredCount"`
	DBSizeBytes   int64 `json:"dbSizeBytes"`
}

// Stats returns current queue statistics.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	depth := len(q.entries)
	closed := q.closed
	q.mu.Unlock()

	if closed {
		return Stats{}
	}

	lsm, vlog := q.db.Size()
	size := lsm + vlog
	metrics.QueueSizeBytes.Set(float64(size))

	return Stats{
		Depth:         depth,
		TotalAppends:  q.totalAppends.Load(),
		TotalCommits:  q.totalCommits.Load(),
		RestoredCount: q.restoredCount.Load(),
		DBSizeBytes:   size,
	}
}

// DeviceID returns the persisted device identifier, generating and storing
// a fresh UUID on first use. The queue store owns this key exclusively.
func (q *Queue) DeviceID(ctx context.Context) (string, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", ErrQueueClosed
	}
	q.mu.Unlock()

	var id string
	err := q.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyDeviceID))
		if err == nil {
			return item.Value(func(val []byte) error {
				id = string(val)
				return nil
			})
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("get device id: %w", err)
		}
		id = uuid.New().String()
		if err := txn.Set([]byte(keyDeviceID), []byte(id)); err != nil {
			return fmt.Errorf("store device id: %w", err)
		}
		logging.Info().Str("device_id", id).Msg("generated new device id")
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Close gracefully shuts down the queue storage with a bounded timeout.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	timeout := q.cfg.CloseTimeout
	q.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- q.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		logging.Info().Msg("event queue closed")
		return nil
	case <-time.After(timeout):
		logging.Warn().Dur("timeout", timeout).Msg("event queue close timed out")
		return fmt.Errorf("queue close timeout after %v", timeout)
	}
}

// seqKey builds the persisted key for a sequence number.
func seqKey(seq uint64) []byte {
	return fmt.Appendf(nil, "%s%020d", prefixEvent, seq)
}

// seqFromKey parses the sequence number out of a persisted key.
func seqFromKey(key []byte) (uint64, error) {
	var seq uint64
	if _, err := fmt.Sscanf(string(key), prefixEvent+"%d", &seq); err != nil {
		return 0, fmt.Errorf("parse sequence from %q: %w", key, err)
	}
	return seq, nil
}
