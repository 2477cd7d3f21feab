package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"
)

// Tier selects the storage layout and validation rules for an entry.
type Tier int

const (
	// TierFull stores the verbatim two-sided exchange under a date partition.
	TierFull Tier = iota
	// TierTrim stores the compacted exchange under its conversation prefix.
	TierTrim
)

func (t Tier) String() string {
	if t == TierTrim {
		return "trim"
	}
	return "full"
}

// Priority classifies a trim entry for retrieval weighting.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Metadata carries the per-entry context recorded at capture time. The
// session fields belong to the full tier, the classification flags to the
// trim tier; unused fields are omitted from the stored object.
type Metadata struct {
	SessionID        string   `json:"sessionId,omitempty"`
	Model            string   `json:"model,omitempty"`
	Persona          string   `json:"persona,omitempty"`
	StreamDurationMs int64    `json:"streamDurationMs,omitempty"`
	UserAgent        string   `json:"userAgent,omitempty"`
	Timezone         string   `json:"timezone,omitempty"`
	HasDecisions     bool     `json:"hasDecisions,omitempty"`
	IsInferable      bool     `json:"isInferable,omitempty"`
	Priority         Priority `json:"priority,omitempty"`
}

// Entry is one immutable record of a conversational turn. An entry is
// created once when a turn completes and is never mutated after it has been
// persisted.
type Entry struct {
	ID               string   `json:"id"`
	ConversationID   string   `json:"conversationId,omitempty"`
	Timestamp        int64    `json:"timestamp"`
	TurnNumber       int      `json:"turnNumber"`
	UserMessage      string   `json:"userMessage,omitempty"`
	AssistantMessage string   `json:"assistantMessage,omitempty"`
	Trim             string   `json:"trim,omitempty"`
	Checksum         string   `json:"checksum,omitempty"`
	Metadata         Metadata `json:"metadata"`
}

// Tier derives the storage tier from the entry's content.
func (e Entry) Tier() Tier {
	if e.Trim != "" {
		return TierTrim
	}
	return TierFull
}

// Time returns the entry timestamp as UTC wall time.
func (e Entry) Time() time.Time {
	return time.UnixMilli(e.Timestamp).UTC()
}

var (
	ErrMissingID           = errors.New("entry id is required")
	ErrMissingMessages     = errors.New("entry user and assistant messages are required")
	ErrMissingConversation = errors.New("entry conversation id is required")
	ErrMissingTimestamp    = errors.New("entry timestamp is required")
)

// Validate checks the fields required to persist the entry at its tier.
// Validation failures are caller errors and are never retried.
func (e Entry) Validate() error {
	if e.ID == "" {
		return ErrMissingID
	}
	if e.Timestamp <= 0 {
		return ErrMissingTimestamp
	}
	switch e.Tier() {
	case TierTrim:
		if e.ConversationID == "" {
			return ErrMissingConversation
		}
	default:
		if e.UserMessage == "" && e.AssistantMessage == "" {
			return ErrMissingMessages
		}
	}
	return nil
}

// TokenEstimate is the rough four-characters-per-token heuristic used by the
// daily manifest.
func (e Entry) TokenEstimate() int {
	n := len(e.UserMessage) + len(e.AssistantMessage)
	if e.Tier() == TierTrim {
		n = len(e.Trim)
	}
	return (n + 3) / 4
}

// Canonical checksum payloads. Field order is fixed: the checksum is a hash
// over this exact serialization, so these structs must not be reordered.
type fullChecksumPayload struct {
	ID               string `json:"id"`
	Timestamp        int64  `json:"timestamp"`
	TurnNumber       int    `json:"turnNumber"`
	UserMessage      string `json:"userMessage"`
	AssistantMessage string `json:"assistantMessage"`
}

type trimChecksumMetadata struct {
	HasDecisions bool     `json:"hasDecisions"`
	IsInferable  bool     `json:"isInferable"`
	Priority     Priority `json:"priority"`
}

type trimChecksumPayload struct {
	ID             string               `json:"id"`
	ConversationID string               `json:"conversationId"`
	Timestamp      int64                `json:"timestamp"`
	TurnNumber     int                  `json:"turnNumber"`
	Trim           string               `json:"trim"`
	Metadata       trimChecksumMetadata `json:"metadata"`
}

// ComputeChecksum hashes the entry's immutable fields. Recomputing the
// checksum from a stored entry must reproduce the stored value; a mismatch
// signals corruption.
func ComputeChecksum(e Entry) string {
	var payload any
	if e.Tier() == TierTrim {
		payload = trimChecksumPayload{
			ID:             e.ID,
			ConversationID: e.ConversationID,
			Timestamp:      e.Timestamp,
			TurnNumber:     e.TurnNumber,
			Trim:           e.Trim,
			Metadata: trimChecksumMetadata{
				HasDecisions: e.Metadata.HasDecisions,
				IsInferable:  e.Metadata.IsInferable,
				Priority:     e.Metadata.Priority,
			},
		}
	} else {
		payload = fullChecksumPayload{
			ID:               e.ID,
			Timestamp:        e.Timestamp,
			TurnNumber:       e.TurnNumber,
			UserMessage:      e.UserMessage,
			AssistantMessage: e.AssistantMessage,
		}
	}
	// Marshal of a flat struct cannot fail.
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// VerifyChecksum recomputes the checksum and compares it to the stored one.
func VerifyChecksum(e Entry) bool {
	return e.Checksum != "" && e.Checksum == ComputeChecksum(e)
}
