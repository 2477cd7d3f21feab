package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"journal-service/internal/domain"
)

// TombstoneStore records soft-deletion markers over the immutable entry
// space. "Delete" only ever adds to the deletion index; no entry bytes are
// removed, and restore is always possible.
type TombstoneStore struct {
	store ObjectStore
	log   *slog.Logger
	now   func() time.Time
}

func NewTombstoneStore(store ObjectStore, log *slog.Logger, now func() time.Time) (*TombstoneStore, error) {
	if store == nil {
		return nil, errors.New("usecase: object store must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &TombstoneStore{store: store, log: log.With("component", "tombstones"), now: now}, nil
}

// MarkDeleted writes a per-id tombstone marker and adds the id to the
// deletion index. Idempotent: marking an already-deleted id is a no-op.
func (t *TombstoneStore) MarkDeleted(ctx context.Context, id string) error {
	if id == "" {
		return newError(ErrorValidation, "missing_turn_id", nil)
	}

	manifest, err := t.load(ctx)
	if err != nil {
		return err
	}
	if manifest.Contains(id) {
		return nil
	}

	marker := domain.TombstoneMarker{
		TurnID:    id,
		DeletedAt: t.now().UnixMilli(),
		Reason:    "user requested deletion",
	}
	if err := putJSON(ctx, t.store, tombstoneKey(id), marker); err != nil {
		return newError(ErrorStorage, "tombstone_marker_write", err)
	}

	manifest.Add(id)
	manifest.LastUpdated = t.now().UnixMilli()
	if err := putJSON(ctx, t.store, deletionsKey, manifest); err != nil {
		return newError(ErrorStorage, "deletion_manifest_write", err)
	}
	t.log.Info("entry marked deleted", "turnId", id)
	return nil
}

// Restore removes the id from the deletion index. The entry object and its
// tombstone marker are untouched; only the index decides visibility.
func (t *TombstoneStore) Restore(ctx context.Context, id string) error {
	if id == "" {
		return newError(ErrorValidation, "missing_turn_id", nil)
	}

	manifest, err := t.load(ctx)
	if err != nil {
		return err
	}
	if !manifest.Remove(id) {
		return nil
	}
	manifest.LastUpdated = t.now().UnixMilli()
	if err := putJSON(ctx, t.store, deletionsKey, manifest); err != nil {
		return newError(ErrorStorage, "deletion_manifest_write", err)
	}
	t.log.Info("entry restored", "turnId", id)
	return nil
}

// ListDeleted returns the ids currently marked deleted.
func (t *TombstoneStore) ListDeleted(ctx context.Context) ([]string, error) {
	manifest, err := t.load(ctx)
	if err != nil {
		return nil, err
	}
	return manifest.DeletedIDs, nil
}

// IsActive reports whether the id is not in the deletion set.
func (t *TombstoneStore) IsActive(ctx context.Context, id string) (bool, error) {
	manifest, err := t.load(ctx)
	if err != nil {
		return false, err
	}
	return !manifest.Contains(id), nil
}

func (t *TombstoneStore) load(ctx context.Context) (*domain.DeletionManifest, error) {
	manifest, err := getJSON[domain.DeletionManifest](ctx, t.store, deletionsKey)
	if err != nil {
		return nil, newError(ErrorStorage, "deletion_manifest_read", err)
	}
	if manifest == nil {
		manifest = &domain.DeletionManifest{}
	}
	return manifest, nil
}
