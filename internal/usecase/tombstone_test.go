package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"journal-service/internal/domain"
)

func newTestTombstones(t *testing.T, store ObjectStore, now time.Time) *TombstoneStore {
	t.Helper()
	ts, err := NewTombstoneStore(store, testLogger(), func() time.Time { return now })
	require.NoError(t, err)
	return ts
}

func TestMarkDeleted_WritesMarkerAndIndex(t *testing.T) {
	store := newMemStore()
	now := testTime(6, 12)
	ts := newTestTombstones(t, store, now)
	ctx := context.Background()

	require.NoError(t, ts.MarkDeleted(ctx, "turn-1"))

	var marker domain.TombstoneMarker
	store.decode(t, "deletions/turn-1.json", &marker)
	require.Equal(t, "turn-1", marker.TurnID)
	require.Equal(t, now.UnixMilli(), marker.DeletedAt)
	require.NotEmpty(t, marker.Reason)

	var manifest domain.DeletionManifest
	store.decode(t, "manifests/deletions.json", &manifest)
	require.Equal(t, []string{"turn-1"}, manifest.DeletedIDs)
	require.Equal(t, now.UnixMilli(), manifest.LastUpdated)

	active, err := ts.IsActive(ctx, "turn-1")
	require.NoError(t, err)
	require.False(t, active)
}

func TestMarkDeleted_Idempotent(t *testing.T) {
	store := newMemStore()
	ts := newTestTombstones(t, store, testTime(6, 12))
	ctx := context.Background()

	require.NoError(t, ts.MarkDeleted(ctx, "turn-1"))
	require.NoError(t, ts.MarkDeleted(ctx, "turn-1"))

	var manifest domain.DeletionManifest
	store.decode(t, "manifests/deletions.json", &manifest)
	require.Len(t, manifest.DeletedIDs, 1)
}

func TestMarkDeleted_MissingID(t *testing.T) {
	ts := newTestTombstones(t, newMemStore(), testTime(6, 12))
	err := ts.MarkDeleted(context.Background(), "")
	require.Equal(t, ErrorValidation, CodeOf(err))
}

func TestRestore_RemovesFromIndexOnly(t *testing.T) {
	store := newMemStore()
	ts := newTestTombstones(t, store, testTime(6, 12))
	ctx := context.Background()

	require.NoError(t, ts.MarkDeleted(ctx, "turn-1"))
	require.NoError(t, ts.Restore(ctx, "turn-1"))

	// The index forgets the id; the marker object is kept as history.
	var manifest domain.DeletionManifest
	store.decode(t, "manifests/deletions.json", &manifest)
	require.Empty(t, manifest.DeletedIDs)
	require.True(t, store.has("deletions/turn-1.json"))

	active, err := ts.IsActive(ctx, "turn-1")
	require.NoError(t, err)
	require.True(t, active)
}

func TestRestore_AbsentIDIsNoop(t *testing.T) {
	store := newMemStore()
	ts := newTestTombstones(t, store, testTime(6, 12))

	require.NoError(t, ts.Restore(context.Background(), "turn-never-deleted"))
	require.False(t, store.has("manifests/deletions.json"))
}

func TestListDeleted(t *testing.T) {
	store := newMemStore()
	ts := newTestTombstones(t, store, testTime(6, 12))
	ctx := context.Background()

	ids, err := ts.ListDeleted(ctx)
	require.NoError(t, err)
	require.Empty(t, ids)

	require.NoError(t, ts.MarkDeleted(ctx, "turn-1"))
	require.NoError(t, ts.MarkDeleted(ctx, "turn-2"))

	ids, err = ts.ListDeleted(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"turn-1", "turn-2"}, ids)
}
