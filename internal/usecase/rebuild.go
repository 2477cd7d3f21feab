package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"journal-service/internal/domain"
)

// Rebuilder reconstructs every manifest tier from the entry objects, which
// are the authoritative state. Used to recover from the accepted manifest
// races or from swallowed update failures.
type Rebuilder struct {
	store       ObjectStore
	log         *slog.Logger
	horizonDays int
	maxKeys     int32
	now         func() time.Time
}

func NewRebuilder(store ObjectStore, log *slog.Logger, horizonDays int, maxKeys int32, now func() time.Time) (*Rebuilder, error) {
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
	return &Rebuilder{
		store:       store,
		log:         log.With("component", "rebuild"),
		horizonDays: horizonDays,
		maxKeys:     maxKeys,
		now:         now,
	}, nil
}

// RebuildReport summarizes one rebuild pass.
type RebuildReport struct {
	Days           int `json:"days"`
	FullEntries    int `json:"fullEntries"`
	Conversations  int `json:"conversations"`
	TrimEntries    int `json:"trimEntries"`
	CorruptEntries int `json:"corruptEntries"`
}

// Rebuild rescans the full-tier date partitions across the horizon and
// every conversation prefix, verifies entry checksums, and rewrites the
// daily, conversation and global manifests from scratch.
func (r *Rebuilder) Rebuild(ctx context.Context) (RebuildReport, error) {
	var report RebuildReport

	master := &domain.GlobalManifest{}
	day := dayStart(r.now().UTC()).AddDate(0, 0, -(r.horizonDays - 1))
	for i := 0; i < r.horizonDays; i++ {
		entries, err := r.loadEntries(ctx, dayPrefix(day), &report)
		if err != nil {
			return report, err
		}
		if len(entries) > 0 {
			daily := &domain.DailyManifest{Date: dayLabel(day)}
			for _, e := range entries {
				daily.Append(e)
				master.Append(e)
			}
			if err := putJSON(ctx, r.store, dailyManifestKey(day), daily); err != nil {
				return report, newError(ErrorStorage, "daily_manifest_write", err)
			}
			report.Days++
			report.FullEntries += len(entries)
		}
		day = day.AddDate(0, 0, 1)
	}
	master.RecomputeChecksum()
	if err := putJSON(ctx, r.store, masterManifestKey, master); err != nil {
		return report, newError(ErrorStorage, "master_manifest_write", err)
	}

	global := &domain.GlobalManifest{}
	listed, err := r.store.List(ctx, conversationsRoot, "/", r.maxKeys)
	if err != nil {
		return report, newError(ErrorStorage, "conversation_listing", err)
	}
	for _, prefix := range listed.CommonPrefixes {
		id := strings.TrimSuffix(strings.TrimPrefix(prefix, conversationsRoot), "/")
		if id == "" {
			continue
		}
		entries, err := r.loadEntries(ctx, messagesPrefix(id), &report)
		if err != nil {
			return report, err
		}
		manifest := &domain.ConversationManifest{ConversationID: id}
		for _, e := range entries {
			manifest.Append(e)
			global.Append(e)
		}
		if err := putJSON(ctx, r.store, conversationManifestKey(id), manifest); err != nil {
			return report, newError(ErrorStorage, "conversation_manifest_write", err)
		}
		report.Conversations++
		report.TrimEntries += len(entries)
	}
	global.RecomputeChecksum()
	if err := putJSON(ctx, r.store, globalManifestKey, global); err != nil {
		return report, newError(ErrorStorage, "global_manifest_write", err)
	}

	r.log.Info("manifest rebuild complete",
		"days", report.Days,
		"fullEntries", report.FullEntries,
		"conversations", report.Conversations,
		"trimEntries", report.TrimEntries,
		"corrupt", report.CorruptEntries)
	return report, nil
}

// loadEntries lists one prefix and hydrates its entries in timestamp order,
// counting checksum mismatches as corruption without dropping the entry.
func (r *Rebuilder) loadEntries(ctx context.Context, prefix string, report *RebuildReport) ([]domain.Entry, error) {
	listed, err := r.store.List(ctx, prefix, "", r.maxKeys)
	if err != nil {
		return nil, newError(ErrorStorage, "partition_listing", err)
	}
	entries := make([]domain.Entry, 0, len(listed.Keys))
	for _, key := range listed.Keys {
		entry, err := getJSON[domain.Entry](ctx, r.store, key)
		if err != nil || entry == nil {
			r.log.Warn("entry unreadable during rebuild", "key", key, "err", err)
			continue
		}
		if !domain.VerifyChecksum(*entry) {
			r.log.Warn("checksum mismatch during rebuild", "key", key)
			report.CorruptEntries++
		}
		entries = append(entries, *entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Timestamp < entries[j].Timestamp })
	return entries, nil
}
