package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// EntryRef is a lightweight pointer to a stored entry, kept inside manifests
// so listings do not require a full partition scan.
type EntryRef struct {
	ID           string   `json:"id"`
	Timestamp    int64    `json:"timestamp"`
	TurnNumber   int      `json:"turnNumber"`
	Priority     Priority `json:"priority,omitempty"`
	HasDecisions bool     `json:"hasDecisions,omitempty"`
	IsInferable  bool     `json:"isInferable,omitempty"`
}

// Ref builds the manifest reference for an entry.
func (e Entry) Ref() EntryRef {
	return EntryRef{
		ID:           e.ID,
		Timestamp:    e.Timestamp,
		TurnNumber:   e.TurnNumber,
		Priority:     e.Metadata.Priority,
		HasDecisions: e.Metadata.HasDecisions,
		IsInferable:  e.Metadata.IsInferable,
	}
}

// DailyManifest indexes one UTC date partition of the full tier.
type DailyManifest struct {
	Date                string     `json:"date"`
	Entries             []EntryRef `json:"entries"`
	TotalTokensEstimate int        `json:"totalTokensEstimate"`
}

// Append records an entry reference and its token estimate.
func (m *DailyManifest) Append(e Entry) {
	m.Entries = append(m.Entries, e.Ref())
	m.TotalTokensEstimate += e.TokenEstimate()
}

type PriorityBreakdown struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

func (p *PriorityBreakdown) Bump(pr Priority) {
	switch pr {
	case PriorityHigh:
		p.High++
	case PriorityMedium:
		p.Medium++
	case PriorityLow:
		p.Low++
	}
}

// ConversationManifest summarizes one conversation's trim-tier messages.
type ConversationManifest struct {
	ConversationID    string            `json:"conversationId"`
	Messages          []EntryRef        `json:"messages"`
	TotalMessages     int               `json:"totalMessages"`
	PriorityBreakdown PriorityBreakdown `json:"priorityBreakdown"`
	DecisionCount     int               `json:"decisionCount"`
	InferableCount    int               `json:"inferableCount"`
	FirstMessageTs    int64             `json:"firstMessageTs,omitempty"`
	LastMessageTs     int64             `json:"lastMessageTs,omitempty"`
}

// Append records an entry and updates the aggregate counters.
func (m *ConversationManifest) Append(e Entry) {
	m.Messages = append(m.Messages, e.Ref())
	m.TotalMessages++
	m.PriorityBreakdown.Bump(e.Metadata.Priority)
	if e.Metadata.HasDecisions {
		m.DecisionCount++
	}
	if e.Metadata.IsInferable {
		m.InferableCount++
	}
	if m.FirstMessageTs == 0 {
		m.FirstMessageTs = e.Timestamp
	}
	m.LastMessageTs = e.Timestamp
}

// GlobalManifest summarizes a whole tier. It is a derived cache: the set of
// entry objects is authoritative and the manifest can always be rebuilt from
// them.
type GlobalManifest struct {
	TotalMessages      int               `json:"totalMessages"`
	TotalConversations int               `json:"totalConversations"`
	PriorityBreakdown  PriorityBreakdown `json:"priorityBreakdown"`
	DecisionCount      int               `json:"decisionCount"`
	InferableCount     int               `json:"inferableCount"`
	ConversationIDs    []string          `json:"conversationIds"`
	FirstMessageTs     int64             `json:"firstMessageTs,omitempty"`
	LastMessageTs      int64             `json:"lastMessageTs,omitempty"`
	Checksum           string            `json:"checksum,omitempty"`
}

func (m *GlobalManifest) hasConversation(id string) bool {
	for _, c := range m.ConversationIDs {
		if c == id {
			return true
		}
	}
	return false
}

// Append records an entry, tracking newly seen conversations.
func (m *GlobalManifest) Append(e Entry) {
	if e.ConversationID != "" && !m.hasConversation(e.ConversationID) {
		m.ConversationIDs = append(m.ConversationIDs, e.ConversationID)
		m.TotalConversations++
	}
	m.TotalMessages++
	m.PriorityBreakdown.Bump(e.Metadata.Priority)
	if e.Metadata.HasDecisions {
		m.DecisionCount++
	}
	if e.Metadata.IsInferable {
		m.InferableCount++
	}
	if m.FirstMessageTs == 0 {
		m.FirstMessageTs = e.Timestamp
	}
	m.LastMessageTs = e.Timestamp
}

// RecomputeChecksum rehashes the manifest body with the checksum field
// cleared and stores the result. Called on every update.
func (m *GlobalManifest) RecomputeChecksum() {
	body := *m
	body.Checksum = ""
	raw, _ := json.Marshal(body)
	sum := sha256.Sum256(raw)
	m.Checksum = hex.EncodeToString(sum[:])
}

// DeletionManifest is the tombstone index. Deletion only ever adds here; the
// underlying entry objects are never touched.
type DeletionManifest struct {
	DeletedIDs  []string `json:"deletedIds"`
	LastUpdated int64    `json:"lastUpdated"`
}

func (m *DeletionManifest) Contains(id string) bool {
	for _, d := range m.DeletedIDs {
		if d == id {
			return true
		}
	}
	return false
}

// Add appends the id if absent and reports whether the manifest changed.
func (m *DeletionManifest) Add(id string) bool {
	if m.Contains(id) {
		return false
	}
	m.DeletedIDs = append(m.DeletedIDs, id)
	return true
}

// Remove deletes the id if present and reports whether the manifest changed.
func (m *DeletionManifest) Remove(id string) bool {
	for i, d := range m.DeletedIDs {
		if d == id {
			m.DeletedIDs = append(m.DeletedIDs[:i], m.DeletedIDs[i+1:]...)
			return true
		}
	}
	return false
}

// TombstoneMarker is the per-id deletion record written alongside the index.
type TombstoneMarker struct {
	TurnID    string `json:"turnId"`
	DeletedAt int64  `json:"deletedAt"`
	Reason    string `json:"reason,omitempty"`
}
