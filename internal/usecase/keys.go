package usecase

import (
	"fmt"
	"time"

	"journal-service/internal/domain"
)

// Storage key layout. Entry keys are deterministic functions of the entry so
// that a retried write lands on the same object.
const (
	entriesRoot       = "entries/"
	conversationsRoot = "conversations/"
	masterManifestKey = "manifests/master.json"
	globalManifestKey = "manifests/global.json"
	deletionsKey      = "manifests/deletions.json"
	tombstonesRoot    = "deletions/"
)

// dayPrefix returns the full-tier partition prefix for a UTC date.
func dayPrefix(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s%04d/%02d/%02d/", entriesRoot, t.Year(), t.Month(), t.Day())
}

// dailyManifestKey returns the daily manifest key for a UTC date.
func dailyManifestKey(t time.Time) string {
	return "manifests/daily/" + dayLabel(t) + ".json"
}

func dayLabel(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%04d-%02d-%02d", t.Year(), t.Month(), t.Day())
}

func conversationPrefix(conversationID string) string {
	return conversationsRoot + conversationID + "/"
}

func messagesPrefix(conversationID string) string {
	return conversationPrefix(conversationID) + "messages/"
}

func conversationManifestKey(conversationID string) string {
	return conversationPrefix(conversationID) + "metadata.json"
}

func tombstoneKey(id string) string {
	return tombstonesRoot + id + ".json"
}

// entryKey builds the immutable object key for an entry at its tier.
func entryKey(e domain.Entry) string {
	name := fmt.Sprintf("%s-%d.json", e.ID, e.Timestamp)
	if e.Tier() == domain.TierTrim {
		return messagesPrefix(e.ConversationID) + name
	}
	return dayPrefix(e.Time()) + name
}

// globalKeyForTier maps a tier to its global manifest object.
func globalKeyForTier(t domain.Tier) string {
	if t == domain.TierTrim {
		return globalManifestKey
	}
	return masterManifestKey
}
