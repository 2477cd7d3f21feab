package usecase

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"journal-service/internal/domain"
	"journal-service/internal/repository"
)

// memStore is an in-memory ObjectStore honoring the write-once condition.
// Hooks inject failures per call; putKeys records the order of successful
// writes.
type memStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	lastOpts map[string]repository.PutOptions
	putKeys  []string
	putHook  func(key string) error
	getHook  func(key string) error
	listHook func(prefix string) error
}

func newMemStore() *memStore {
	return &memStore{
		objects:  make(map[string][]byte),
		lastOpts: make(map[string]repository.PutOptions),
	}
}

func (m *memStore) Put(_ context.Context, key string, body []byte, opts repository.PutOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putHook != nil {
		if err := m.putHook(key); err != nil {
			return err
		}
	}
	if opts.IfNoneMatch {
		if _, ok := m.objects[key]; ok {
			return repository.ErrKeyExists
		}
	}
	m.objects[key] = append([]byte(nil), body...)
	m.lastOpts[key] = opts
	m.putKeys = append(m.putKeys, key)
	return nil
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getHook != nil {
		if err := m.getHook(key); err != nil {
			return nil, err
		}
	}
	body, ok := m.objects[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return append([]byte(nil), body...), nil
}

func (m *memStore) List(_ context.Context, prefix, delimiter string, maxKeys int32) (repository.ListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listHook != nil {
		if err := m.listHook(prefix); err != nil {
			return repository.ListResult{}, err
		}
	}

	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var res repository.ListResult
	seen := make(map[string]bool)
	for _, k := range keys {
		if delimiter != "" {
			rest := strings.TrimPrefix(k, prefix)
			if i := strings.Index(rest, delimiter); i >= 0 {
				cp := prefix + rest[:i+1]
				if !seen[cp] {
					seen[cp] = true
					res.CommonPrefixes = append(res.CommonPrefixes, cp)
				}
				continue
			}
		}
		res.Keys = append(res.Keys, k)
	}
	if maxKeys > 0 && int32(len(res.Keys)) > maxKeys {
		res.Keys = res.Keys[:maxKeys]
		res.Truncated = true
	}
	return res, nil
}

func (m *memStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

func (m *memStore) count(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			n++
		}
	}
	return n
}

func (m *memStore) decode(t *testing.T, key string, v any) {
	t.Helper()
	m.mu.Lock()
	body, ok := m.objects[key]
	m.mu.Unlock()
	require.True(t, ok, "object %s not found", key)
	require.NoError(t, json.Unmarshal(body, v))
}

// seedEntry stamps the checksum and stores the entry at its canonical key,
// bypassing the write path.
func (m *memStore) seedEntry(t *testing.T, e domain.Entry) string {
	t.Helper()
	e.Checksum = domain.ComputeChecksum(e)
	body, err := json.Marshal(e)
	require.NoError(t, err)
	key := entryKey(e)
	m.mu.Lock()
	m.objects[key] = body
	m.mu.Unlock()
	return key
}

// manualScheduler captures scheduled callbacks so tests control time.
type manualScheduler struct {
	mu      sync.Mutex
	delays  []time.Duration
	fn      func()
	cancels int
}

func (s *manualScheduler) Schedule(d time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	s.fn = fn
	return func() {
		s.mu.Lock()
		s.cancels++
		s.mu.Unlock()
	}
}

// fire runs the pending callback synchronously.
func (s *manualScheduler) fire() {
	s.mu.Lock()
	fn := s.fn
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *manualScheduler) lastDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.delays) == 0 {
		return 0
	}
	return s.delays[len(s.delays)-1]
}

// recordingReporter captures every queue report.
type recordingReporter struct {
	mu      sync.Mutex
	queued  []int
	flushes []time.Time
}

func (r *recordingReporter) ReportQueue(queued int, lastFlush time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queued = append(r.queued, queued)
	r.flushes = append(r.flushes, lastFlush)
}

func (r *recordingReporter) lastQueued() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queued) == 0 {
		return -1
	}
	return r.queued[len(r.queued)-1]
}

// tempNetErr satisfies net.Error, classifying as transient.
type tempNetErr struct{}

func (tempNetErr) Error() string   { return "connection reset" }
func (tempNetErr) Timeout() bool   { return true }
func (tempNetErr) Temporary() bool { return true }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tsString(e domain.Entry) string {
	return strconv.FormatInt(e.Timestamp, 10)
}

func testTime(day int, hour int) time.Time {
	return time.Date(2026, 3, day, hour, 0, 0, 0, time.UTC)
}

func fullEntryAt(id string, ts time.Time) domain.Entry {
	return domain.Entry{
		ID:               id,
		Timestamp:        ts.UnixMilli(),
		TurnNumber:       1,
		UserMessage:      "what did we decide?",
		AssistantMessage: "we decided to archive everything.",
		Metadata:         domain.Metadata{SessionID: "sess-1"},
	}
}

func trimEntryAt(id, conversationID string, ts time.Time) domain.Entry {
	return domain.Entry{
		ID:             id,
		ConversationID: conversationID,
		Timestamp:      ts.UnixMilli(),
		TurnNumber:     2,
		Trim:           "short summary of the exchange",
		Metadata:       domain.Metadata{HasDecisions: true, Priority: domain.PriorityHigh},
	}
}
