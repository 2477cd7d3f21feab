package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDailyManifest_Append(t *testing.T) {
	m := &DailyManifest{Date: "2026-03-05"}
	e := fullEntry()
	m.Append(e)

	require.Len(t, m.Entries, 1)
	require.Equal(t, e.ID, m.Entries[0].ID)
	require.Equal(t, e.Timestamp, m.Entries[0].Timestamp)
	require.Equal(t, e.TokenEstimate(), m.TotalTokensEstimate)
}

func TestConversationManifest_Append(t *testing.T) {
	m := &ConversationManifest{ConversationID: "conv-9"}

	first := trimEntry()
	second := trimEntry()
	second.ID = "turn-3"
	second.Timestamp = first.Timestamp + 1000
	second.Metadata = Metadata{IsInferable: true, Priority: PriorityLow}

	m.Append(first)
	m.Append(second)

	require.Equal(t, 2, m.TotalMessages)
	require.Equal(t, 1, m.PriorityBreakdown.High)
	require.Equal(t, 1, m.PriorityBreakdown.Low)
	require.Equal(t, 1, m.DecisionCount)
	require.Equal(t, 1, m.InferableCount)
	require.Equal(t, first.Timestamp, m.FirstMessageTs)
	require.Equal(t, second.Timestamp, m.LastMessageTs)
}

func TestGlobalManifest_TracksConversationsOnce(t *testing.T) {
	m := &GlobalManifest{}
	e := trimEntry()
	m.Append(e)
	m.Append(e)

	require.Equal(t, 2, m.TotalMessages)
	require.Equal(t, 1, m.TotalConversations)
	require.Equal(t, []string{"conv-9"}, m.ConversationIDs)
}

func TestGlobalManifest_RecomputeChecksum(t *testing.T) {
	m := &GlobalManifest{}
	m.Append(trimEntry())
	m.RecomputeChecksum()
	first := m.Checksum
	require.Len(t, first, 64)

	// Recomputing without changes is stable; the stored checksum is not
	// part of its own input.
	m.RecomputeChecksum()
	require.Equal(t, first, m.Checksum)

	m.Append(trimEntry())
	m.RecomputeChecksum()
	require.NotEqual(t, first, m.Checksum)
}

func TestDeletionManifest_AddRemove(t *testing.T) {
	m := &DeletionManifest{}

	require.True(t, m.Add("turn-1"))
	require.False(t, m.Add("turn-1"))
	require.True(t, m.Contains("turn-1"))
	require.Len(t, m.DeletedIDs, 1)

	require.True(t, m.Remove("turn-1"))
	require.False(t, m.Remove("turn-1"))
	require.False(t, m.Contains("turn-1"))
}
