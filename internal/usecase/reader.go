package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"journal-service/internal/domain"
)

const (
	defaultHorizonDays = 30
	defaultMaxKeys     = 1000
	defaultFetchLimit  = 8
)

// Reader answers conversation and time-range queries without a secondary
// index. Scans are linear in days covered and bounded by the horizon and
// per-listing key cap; that cost is an accepted scaling limit of the
// date-partitioned layout.
type Reader struct {
	store       ObjectStore
	log         *slog.Logger
	horizonDays int
	maxKeys     int32
	fetchLimit  int
	now         func() time.Time
}

// NewReader creates a Reader. Zero bounds select the defaults (30-day
// horizon, 1000 keys per listing, 8 parallel fetches).
func NewReader(store ObjectStore, log *slog.Logger, horizonDays int, maxKeys int32, now func() time.Time) (*Reader, error) {
	if store == nil {
		return nil, errors.New("usecase: object store must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	if horizonDays <= 0 {
		horizonDays = defaultHorizonDays
	}
	if maxKeys <= 0 {
		maxKeys = defaultMaxKeys
	}
	if now == nil {
		now = time.Now
	}
	return &Reader{
		store:       store,
		log:         log.With("component", "reader"),
		horizonDays: horizonDays,
		maxKeys:     maxKeys,
		fetchLimit:  defaultFetchLimit,
		now:         now,
	}, nil
}

// ConversationView is a fully hydrated conversation read.
type ConversationView struct {
	ConversationID string                       `json:"conversationId"`
	Metadata       *domain.ConversationManifest `json:"metadata"`
	Messages       []domain.Entry               `json:"messages"`
	TotalMessages  int                          `json:"totalMessages"`
}

// Page is one window of a scan, newest first.
type Page struct {
	Entries []domain.Entry `json:"entries"`
	Total   int            `json:"total"`
	HasMore bool           `json:"hasMore"`
}

// ConversationSummary is one row of the conversation listing. Error is set
// when the manifest could not be loaded; the row is still returned.
type ConversationSummary struct {
	domain.ConversationManifest
	Error string `json:"error,omitempty"`
}

// ListView is the response of ListConversations.
type ListView struct {
	Global             *domain.GlobalManifest `json:"global"`
	Conversations      []ConversationSummary  `json:"conversations"`
	TotalConversations int                    `json:"totalConversations"`
}

// ReadConversation hydrates every message under the conversation's prefix,
// sorted ascending by timestamp. A missing manifest means the conversation
// does not exist; an individual message fetch failure is skipped.
func (r *Reader) ReadConversation(ctx context.Context, conversationID string) (ConversationView, error) {
	if conversationID == "" {
		return ConversationView{}, newError(ErrorValidation, "missing_conversation_id", nil)
	}

	manifest, err := getJSON[domain.ConversationManifest](ctx, r.store, conversationManifestKey(conversationID))
	if err != nil {
		return ConversationView{}, newError(ErrorStorage, "conversation_manifest_read", err)
	}
	if manifest == nil {
		return ConversationView{}, newError(ErrorNotFound, "conversation_not_found", nil)
	}

	listed, err := r.store.List(ctx, messagesPrefix(conversationID), "", r.maxKeys)
	if err != nil {
		return ConversationView{}, newError(ErrorStorage, "conversation_list", err)
	}

	messages := r.fetchEntries(ctx, listed.Keys)
	sort.Slice(messages, func(i, j int) bool { return messages[i].Timestamp < messages[j].Timestamp })

	return ConversationView{
		ConversationID: conversationID,
		Metadata:       manifest,
		Messages:       messages,
		TotalMessages:  len(messages),
	}, nil
}

// ReadRange scans the UTC date partitions covering [startTs, endTs] and
// returns the entries inside the window, newest first, paginated. The scan
// covers at most horizonDays days, counted back from the end of the window,
// so an over-wide request cannot turn into an unbounded listing storm.
func (r *Reader) ReadRange(ctx context.Context, startTs, endTs int64, limit, offset int) (Page, error) {
	if endTs < startTs {
		return Page{}, newError(ErrorValidation, "end_before_start", nil)
	}
	startDay := dayStart(time.UnixMilli(startTs).UTC())
	endDay := dayStart(time.UnixMilli(endTs).UTC())
	if floor := endDay.AddDate(0, 0, -(r.horizonDays - 1)); startDay.Before(floor) {
		startDay = floor
	}

	var entries []domain.Entry
	for day := startDay; !day.After(endDay); day = day.AddDate(0, 0, 1) {
		for _, e := range r.scanDay(ctx, day) {
			if e.Timestamp >= startTs && e.Timestamp <= endTs {
				entries = append(entries, e)
			}
		}
	}
	return paginate(entries, limit, offset), nil
}

// ReadRecent walks backward from today across the horizon until enough
// candidates are collected, then sorts and slices.
func (r *Reader) ReadRecent(ctx context.Context, limit, offset int) (Page, error) {
	if limit <= 0 {
		limit = 100
	}
	want := offset + limit

	var entries []domain.Entry
	day := dayStart(r.now().UTC())
	for scanned := 0; scanned < r.horizonDays && len(entries) < want; scanned++ {
		entries = append(entries, r.scanDay(ctx, day)...)
		day = day.AddDate(0, 0, -1)
	}
	return paginate(entries, limit, offset), nil
}

// ListConversations enumerates conversation prefixes and loads each
// manifest, most recent activity first. Missing or unreadable metadata
// degrades to a stub row rather than failing the listing.
func (r *Reader) ListConversations(ctx context.Context) (ListView, error) {
	global, err := getJSON[domain.GlobalManifest](ctx, r.store, globalManifestKey)
	if err != nil {
		r.log.Warn("global manifest read failed", "err", err)
	}
	if global == nil {
		global = &domain.GlobalManifest{}
	}

	listed, err := r.store.List(ctx, conversationsRoot, "/", r.maxKeys)
	if err != nil {
		return ListView{}, newError(ErrorStorage, "conversation_listing", err)
	}

	summaries := make([]ConversationSummary, 0, len(listed.CommonPrefixes))
	for _, prefix := range listed.CommonPrefixes {
		id := strings.TrimSuffix(strings.TrimPrefix(prefix, conversationsRoot), "/")
		if id == "" {
			continue
		}
		manifest, err := getJSON[domain.ConversationManifest](ctx, r.store, conversationManifestKey(id))
		if err != nil || manifest == nil {
			r.log.Warn("conversation metadata unavailable", "conversationId", id, "err", err)
			summaries = append(summaries, ConversationSummary{
				ConversationManifest: domain.ConversationManifest{ConversationID: id},
				Error:                "metadata unavailable",
			})
			continue
		}
		summaries = append(summaries, ConversationSummary{ConversationManifest: *manifest})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastMessageTs > summaries[j].LastMessageTs
	})

	return ListView{
		Global:             global,
		Conversations:      summaries,
		TotalConversations: len(summaries),
	}, nil
}

// Global returns the global manifest for a tier, zero-valued when none has
// been written yet.
func (r *Reader) Global(ctx context.Context, tier domain.Tier) (*domain.GlobalManifest, error) {
	manifest, err := getJSON[domain.GlobalManifest](ctx, r.store, globalKeyForTier(tier))
	if err != nil {
		return nil, newError(ErrorStorage, "global_manifest_read", err)
	}
	if manifest == nil {
		manifest = &domain.GlobalManifest{}
	}
	return manifest, nil
}

// scanDay lists and hydrates one full-tier date partition. Listing failure
// degrades to an empty day; fetch failures are skipped inside fetchEntries.
func (r *Reader) scanDay(ctx context.Context, day time.Time) []domain.Entry {
	listed, err := r.store.List(ctx, dayPrefix(day), "", r.maxKeys)
	if err != nil {
		r.log.Warn("day partition listing failed", "date", dayLabel(day), "err", err)
		return nil
	}
	return r.fetchEntries(ctx, listed.Keys)
}

// fetchEntries hydrates entry objects in parallel, bounded by fetchLimit.
// A failed fetch is logged and skipped so one bad object cannot poison a
// multi-object read.
func (r *Reader) fetchEntries(ctx context.Context, keys []string) []domain.Entry {
	results := make([]*domain.Entry, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.fetchLimit)
	for i, key := range keys {
		g.Go(func() error {
			entry, err := getJSON[domain.Entry](gctx, r.store, key)
			if err != nil || entry == nil {
				r.log.Warn("entry fetch failed, skipping", "key", key, "err", err)
				return nil
			}
			results[i] = entry
			return nil
		})
	}
	// Workers never return errors; Wait only joins them.
	_ = g.Wait()

	entries := make([]domain.Entry, 0, len(results))
	for _, e := range results {
		if e != nil {
			entries = append(entries, *e)
		}
	}
	return entries
}

// maxKeysAsLimit sizes the recycle-bin scan to one listing page.
func (r *Reader) maxKeysAsLimit() int {
	return int(r.maxKeys)
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// paginate sorts newest-first and applies offset/limit.
func paginate(entries []domain.Entry, limit, offset int) Page {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Timestamp > entries[j].Timestamp })
	total := len(entries)
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 100
	}
	if offset >= total {
		return Page{Entries: []domain.Entry{}, Total: total, HasMore: false}
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return Page{Entries: entries[offset:end], Total: total, HasMore: end < total}
}

// FilterSession keeps only entries captured under the given session.
func FilterSession(entries []domain.Entry, sessionID string) []domain.Entry {
	if sessionID == "" {
		return entries
	}
	out := entries[:0:0]
	for _, e := range entries {
		if e.Metadata.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out
}
