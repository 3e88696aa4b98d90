package dto

import (
	"time"

	"github.com/spec-kit/lead-intake-service/internal/domain"
	"github.com/spec-kit/lead-intake-service/internal/service"
)

// UpdateBuyerRequest carries a partial candidate state plus the updatedAt
// the client last saw, which drives the concurrency check.
type UpdateBuyerRequest struct {
	service.LeadUpdateInput
	UpdatedAt time.Time `json:"updatedAt"`
}

// BuyerDetailResponse bundles a buyer with its recent history.
type BuyerDetailResponse struct {
	Buyer   *domain.Buyer  `json:"buyer"`
	History []HistoryEntry `json:"history"`
}

// BuyerListResponse is a paginated listing.
type BuyerListResponse struct {
	Items      []domain.Buyer `json:"items"`
	TotalCount int            `json:"totalCount"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
}

// HistoryEntry is the response shape of one audit record.
type HistoryEntry struct {
	ID        string               `json:"id"`
	ChangedBy string               `json:"changedBy"`
	Action    domain.HistoryAction `json:"action"`
	Diff      domain.Diff          `json:"diff,omitempty"`
	ChangedAt time.Time            `json:"changedAt"`
}

// NewHistoryEntries maps domain history records to the response shape.
func NewHistoryEntries(entries []domain.BuyerHistory) []HistoryEntry {
	result := make([]HistoryEntry, 0, len(entries))
	for _, entry := range entries {
		result = append(result, HistoryEntry{
			ID:        entry.ID,
			ChangedBy: entry.ChangedBy,
			Action:    entry.Action,
			Diff:      entry.Diff,
			ChangedAt: entry.ChangedAt,
		})
	}
	return result
}
