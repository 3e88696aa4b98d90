package domain

import "time"

// HistoryAction labels why a history entry was written.
type HistoryAction string

const (
	ActionCreatedLead HistoryAction = "Created Lead"
	ActionUpdatedLead HistoryAction = "Updated Lead"
)

// FieldChange captures a before/after pair for a single field.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Diff maps changed field names to their before/after values.
type Diff map[string]FieldChange

// BuyerHistory is an immutable audit entry appended on every effective
// creation or update of a buyer. Entries are never mutated or deleted.
type BuyerHistory struct {
	ID        string        `json:"id"`
	BuyerID   string        `json:"buyerId"`
	ChangedBy string        `json:"changedBy"`
	Action    HistoryAction `json:"action"`
	Diff      Diff          `json:"diff,omitempty"`
	ChangedAt time.Time     `json:"changedAt"`
}
