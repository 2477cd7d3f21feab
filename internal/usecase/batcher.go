package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"journal-service/internal/domain"
)

const (
	defaultDebounce   = time.Second
	defaultFlushRetry = 2 * time.Second
)

// Scheduler schedules a single callback after a delay. Injected so the
// Batcher's timing is deterministic under test.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) (cancel func())
}

type timerScheduler struct{}

func (timerScheduler) Schedule(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// NewScheduler returns the wall-clock Scheduler.
func NewScheduler() Scheduler { return timerScheduler{} }

// StateReporter receives the batcher's queue depth and last flush time after
// every flush attempt. The UI surfaces persistent storage failure as a
// growing queued-writes count.
type StateReporter interface {
	ReportQueue(queued int, lastFlush time.Time)
}

// Batcher decouples the turn-completed signal from storage I/O. Submissions
// accumulate in an in-memory queue and are flushed after a debounce window;
// a failed flush requeues the remaining entries at the front and reschedules
// at a coarser interval. This layer retries storage failures forever while
// the Writer bounds per-attempt retries internally; only entries that can
// never be written (invalid, or conflicting with a durable object) are
// dropped, with an error log, so one bad entry cannot wedge the queue.
type Batcher struct {
	writer     *Writer
	aggregator *Aggregator
	sched      Scheduler
	reporter   StateReporter
	log        *slog.Logger
	debounce   time.Duration
	retryDelay time.Duration

	mu        sync.Mutex
	queue     []domain.Entry
	cancel    func()
	flushing  bool
	lastFlush time.Time
}

// NewBatcher creates a Batcher. reporter may be nil. Zero durations select
// the defaults (1s debounce, 2s flush retry).
func NewBatcher(writer *Writer, aggregator *Aggregator, sched Scheduler, reporter StateReporter, log *slog.Logger, debounce, retryDelay time.Duration) (*Batcher, error) {
	if writer == nil {
		return nil, errors.New("usecase: writer must not be nil")
	}
	if aggregator == nil {
		return nil, errors.New("usecase: aggregator must not be nil")
	}
	if sched == nil {
		sched = NewScheduler()
	}
	if log == nil {
		log = slog.Default()
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if retryDelay <= 0 {
		retryDelay = defaultFlushRetry
	}
	return &Batcher{
		writer:     writer,
		aggregator: aggregator,
		sched:      sched,
		reporter:   reporter,
		log:        log.With("component", "batcher"),
		debounce:   debounce,
		retryDelay: retryDelay,
	}, nil
}

// Submit queues an entry and (re)starts the debounce timer. A burst of
// submissions collapses into one flush.
func (b *Batcher) Submit(e domain.Entry) {
	b.mu.Lock()
	b.queue = append(b.queue, e)
	b.rescheduleLocked(b.debounce)
	b.mu.Unlock()
}

// QueueDepth reports the number of entries awaiting a flush.
func (b *Batcher) QueueDepth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// rescheduleLocked replaces any pending timer. Caller holds b.mu.
func (b *Batcher) rescheduleLocked(d time.Duration) {
	if b.cancel != nil {
		b.cancel()
	}
	b.cancel = b.sched.Schedule(d, b.flush)
}

// flush drains the queue through the Writer and Aggregator. Only one flush
// runs at a time; once started it runs to completion or failure and is not
// cancelled by session end.
func (b *Batcher) flush() {
	b.mu.Lock()
	if b.flushing || len(b.queue) == 0 {
		b.mu.Unlock()
		return
	}
	b.flushing = true
	batch := b.queue
	b.queue = nil
	b.mu.Unlock()

	ctx := context.Background()
	for i, e := range batch {
		if _, err := b.writer.Persist(ctx, e); err != nil {
			switch CodeOf(err) {
			case ErrorValidation, ErrorConflict:
				// Retrying can never succeed; keep the queue live.
				b.log.Error("dropping unwritable entry", "entryId", e.ID, "code", CodeOf(err), "err", err)
				continue
			}
			b.log.Warn("flush failed, requeueing", "entryId", e.ID, "remaining", len(batch)-i, "err", err)
			b.requeueFront(batch[i:])
			return
		}
		b.aggregator.Update(ctx, e)
	}

	b.mu.Lock()
	b.flushing = false
	b.lastFlush = time.Now()
	queued := len(b.queue)
	last := b.lastFlush
	if queued > 0 {
		// Entries submitted while this flush ran consumed their timer fire;
		// without a fresh schedule they would wait for the next Submit.
		b.rescheduleLocked(b.debounce)
	}
	b.mu.Unlock()

	b.report(queued, last)
	b.log.Debug("flush complete", "written", len(batch), "queued", queued)
}

// requeueFront puts unwritten entries back ahead of anything submitted
// during the flush, preserving relative order, and schedules a retry.
func (b *Batcher) requeueFront(pending []domain.Entry) {
	b.mu.Lock()
	b.queue = append(append([]domain.Entry{}, pending...), b.queue...)
	b.flushing = false
	queued := len(b.queue)
	last := b.lastFlush
	b.rescheduleLocked(b.retryDelay)
	b.mu.Unlock()

	b.report(queued, last)
}

func (b *Batcher) report(queued int, lastFlush time.Time) {
	if b.reporter != nil {
		b.reporter.ReportQueue(queued, lastFlush)
	}
}
