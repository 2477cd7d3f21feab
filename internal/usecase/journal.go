package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"journal-service/internal/domain"
)

// Options tunes a Journal. Zero values select the documented defaults.
type Options struct {
	Debounce        time.Duration
	FlushRetryDelay time.Duration
	WriteAttempts   uint
	WriteRetryDelay time.Duration
	HorizonDays     int
	MaxKeys         int32
	Scheduler       Scheduler
	Reporter        StateReporter
	Logger          *slog.Logger
	Now             func() time.Time
}

// Journal is the storage core of the assistant's conversation archive. It
// owns its Writer, Aggregator, Batcher, Reader and TombstoneStore and is
// handed to callers by reference; there is no ambient global instance.
type Journal struct {
	writer     *Writer
	aggregator *Aggregator
	batcher    *Batcher
	reader     *Reader
	tombstones *TombstoneStore
	log        *slog.Logger
	sessionID  string
	now        func() time.Time
	submitted  atomic.Int64
}

// New wires a Journal over an object store.
func New(store ObjectStore, opts Options) (*Journal, error) {
	if store == nil {
		return nil, newError(ErrorNotConfigured, "object_store_missing", errors.New("nil store"))
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	writer, err := NewWriter(store, log, opts.WriteAttempts, opts.WriteRetryDelay)
	if err != nil {
		return nil, err
	}
	aggregator, err := NewAggregator(store, log)
	if err != nil {
		return nil, err
	}
	batcher, err := NewBatcher(writer, aggregator, opts.Scheduler, opts.Reporter, log, opts.Debounce, opts.FlushRetryDelay)
	if err != nil {
		return nil, err
	}
	reader, err := NewReader(store, log, opts.HorizonDays, opts.MaxKeys, now)
	if err != nil {
		return nil, err
	}
	tombstones, err := NewTombstoneStore(store, log, now)
	if err != nil {
		return nil, err
	}

	return &Journal{
		writer:     writer,
		aggregator: aggregator,
		batcher:    batcher,
		reader:     reader,
		tombstones: tombstones,
		log:        log.With("component", "journal"),
		sessionID:  uuid.NewString(),
		now:        now,
	}, nil
}

// SubmitTurn is the explicit entry point the conversation collaborator
// calls when a turn completes. The entry is queued and flushed after the
// debounce window; persistent storage failure surfaces through the state
// reporter, never back to the conversation flow.
func (j *Journal) SubmitTurn(e domain.Entry) error {
	j.fillDefaults(&e)
	if err := e.Validate(); err != nil {
		return newError(ErrorValidation, "invalid_entry", err)
	}
	j.batcher.Submit(e)
	j.submitted.Add(1)
	return nil
}

// WriteSync persists an entry immediately and updates its manifests. This is
// the synchronous path behind the write endpoint, which must return the
// storage key.
func (j *Journal) WriteSync(ctx context.Context, e domain.Entry) (string, error) {
	j.fillDefaults(&e)
	key, err := j.writer.Persist(ctx, e)
	if err != nil {
		return "", err
	}
	j.aggregator.Update(ctx, e)
	return key, nil
}

func (j *Journal) fillDefaults(e *domain.Entry) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp == 0 {
		e.Timestamp = j.now().UnixMilli()
	}
	if e.Metadata.SessionID == "" {
		e.Metadata.SessionID = j.sessionID
	}
}

// Reader exposes the query side.
func (j *Journal) Reader() *Reader { return j.reader }

// Tombstones exposes the soft-delete side.
func (j *Journal) Tombstones() *TombstoneStore { return j.tombstones }

// DeletedEntries merges the deletion index with a bounded scan of recent
// full-tier entries, rehydrating what the recycle bin can still show. There
// is no id-to-key index, so entries older than the horizon are reported by
// id only.
func (j *Journal) DeletedEntries(ctx context.Context) ([]domain.Entry, []string, error) {
	ids, err := j.tombstones.ListDeleted(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(ids) == 0 {
		return []domain.Entry{}, []string{}, nil
	}
	deleted := make(map[string]bool, len(ids))
	for _, id := range ids {
		deleted[id] = true
	}

	page, err := j.reader.ReadRecent(ctx, j.reader.maxKeysAsLimit(), 0)
	if err != nil {
		return nil, nil, err
	}
	entries := make([]domain.Entry, 0, len(ids))
	for _, e := range page.Entries {
		if deleted[e.ID] {
			entries = append(entries, e)
		}
	}
	return entries, ids, nil
}

// Stats reports the journal's live counters for observability surfaces.
type Stats struct {
	SessionID  string `json:"sessionId"`
	QueueDepth int    `json:"queuedWrites"`
	Submitted  int64  `json:"totalTurns"`
}

func (j *Journal) Stats() Stats {
	return Stats{
		SessionID:  j.sessionID,
		QueueDepth: j.batcher.QueueDepth(),
		Submitted:  j.submitted.Load(),
	}
}
