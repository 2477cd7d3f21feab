package usecase

import (
	"context"
	"errors"
	"log/slog"

	"journal-service/internal/domain"
)

// Aggregator maintains the derived manifest tiers after each successful
// write. Manifests are non-authoritative caches updated by plain
// read-modify-write: two concurrent writers on the same manifest key can
// lose an increment (last writer wins). That staleness is accepted; entry
// objects are write-once and unaffected.
type Aggregator struct {
	store ObjectStore
	log   *slog.Logger
}

func NewAggregator(store ObjectStore, log *slog.Logger) (*Aggregator, error) {
	if store == nil {
		return nil, errors.New("usecase: object store must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Aggregator{store: store, log: log.With("component", "aggregator")}, nil
}

// Update refreshes every manifest scope the entry touches. Failures are
// logged and swallowed: a stale index must never fail the entry write that
// triggered it.
func (a *Aggregator) Update(ctx context.Context, e domain.Entry) {
	if e.Tier() == domain.TierTrim {
		if err := a.updateConversation(ctx, e); err != nil {
			a.log.Warn("conversation manifest update failed", "conversationId", e.ConversationID, "err", err)
		}
	} else {
		if err := a.updateDaily(ctx, e); err != nil {
			a.log.Warn("daily manifest update failed", "date", dayLabel(e.Time()), "err", err)
		}
	}
	if err := a.updateGlobal(ctx, e); err != nil {
		a.log.Warn("global manifest update failed", "tier", e.Tier().String(), "err", err)
	}
}

func (a *Aggregator) updateDaily(ctx context.Context, e domain.Entry) error {
	key := dailyManifestKey(e.Time())
	manifest, err := getJSON[domain.DailyManifest](ctx, a.store, key)
	if err != nil {
		return err
	}
	if manifest == nil {
		manifest = &domain.DailyManifest{Date: dayLabel(e.Time())}
	}
	manifest.Append(e)
	return putJSON(ctx, a.store, key, manifest)
}

func (a *Aggregator) updateConversation(ctx context.Context, e domain.Entry) error {
	key := conversationManifestKey(e.ConversationID)
	manifest, err := getJSON[domain.ConversationManifest](ctx, a.store, key)
	if err != nil {
		return err
	}
	if manifest == nil {
		manifest = &domain.ConversationManifest{ConversationID: e.ConversationID}
	}
	manifest.Append(e)
	return putJSON(ctx, a.store, key, manifest)
}

func (a *Aggregator) updateGlobal(ctx context.Context, e domain.Entry) error {
	key := globalKeyForTier(e.Tier())
	manifest, err := getJSON[domain.GlobalManifest](ctx, a.store, key)
	if err != nil {
		return err
	}
	if manifest == nil {
		manifest = &domain.GlobalManifest{}
	}
	manifest.Append(e)
	manifest.RecomputeChecksum()
	return putJSON(ctx, a.store, key, manifest)
}
