package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/lead-intake-service/internal/domain"
)

// MemoryStore is an in-memory implementation of BuyerRepository and
// BuyerHistoryRepository, used by tests and DSN-less development runs.
// HistoryWriteErr, when set, simulates a failed history insert: the whole
// write is rolled back, mirroring the transactional coupling of the
// Postgres implementation.
type MemoryStore struct {
	mu      sync.RWMutex
	buyers  map[string]domain.Buyer
	history []domain.BuyerHistory

	HistoryWriteErr error
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buyers: make(map[string]domain.Buyer)}
}

func (s *MemoryStore) Create(_ context.Context, buyer *domain.Buyer, entry *domain.BuyerHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry != nil && s.HistoryWriteErr != nil {
		return s.HistoryWriteErr
	}

	now := time.Now()
	buyer.ID = uuid.NewString()
	buyer.CreatedAt = now
	buyer.UpdatedAt = now
	s.buyers[buyer.ID] = cloneBuyer(*buyer)

	if entry != nil {
		entry.ID = uuid.NewString()
		entry.BuyerID = buyer.ID
		entry.ChangedAt = now
		s.history = append(s.history, *entry)
	}
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*domain.Buyer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buyer, ok := s.buyers[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := cloneBuyer(buyer)
	return &copied, nil
}

func (s *MemoryStore) ListWithFilter(_ context.Context, filter BuyerFilter) ([]domain.Buyer, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.Buyer, 0, len(s.buyers))
	for _, buyer := range s.buyers {
		if matchesFilter(buyer, filter) {
			matched = append(matched, cloneBuyer(buyer))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	total := len(matched)
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []domain.Buyer{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (s *MemoryStore) UpdateWithAudit(_ context.Context, buyer *domain.Buyer, expectedUpdatedAt time.Time, entry *domain.BuyerHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.buyers[buyer.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if !current.UpdatedAt.Equal(expectedUpdatedAt) {
		return ErrVersionConflict
	}

	// Nothing is mutated before this point, so a failing history write
	// leaves the stored record untouched, like a rolled-back transaction.
	if entry != nil && s.HistoryWriteErr != nil {
		return s.HistoryWriteErr
	}

	buyer.UpdatedAt = time.Now()
	if buyer.UpdatedAt.Equal(current.UpdatedAt) {
		buyer.UpdatedAt = current.UpdatedAt.Add(time.Millisecond)
	}
	buyer.CreatedAt = current.CreatedAt
	s.buyers[buyer.ID] = cloneBuyer(*buyer)

	if entry != nil {
		entry.ID = uuid.NewString()
		entry.ChangedAt = buyer.UpdatedAt
		s.history = append(s.history, *entry)
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.buyers[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(s.buyers, id)
	kept := s.history[:0]
	for _, entry := range s.history {
		if entry.BuyerID != id {
			kept = append(kept, entry)
		}
	}
	s.history = kept
	return nil
}

func (s *MemoryStore) ListByBuyer(_ context.Context, buyerID string, limit int) ([]domain.BuyerHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 5
	}
	matched := make([]domain.BuyerHistory, 0, limit)
	for _, entry := range s.history {
		if entry.BuyerID == buyerID {
			matched = append(matched, entry)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ChangedAt.After(matched[j].ChangedAt)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func matchesFilter(buyer domain.Buyer, filter BuyerFilter) bool {
	if filter.Search != nil {
		term := strings.ToLower(strings.TrimSpace(*filter.Search))
		if term != "" {
			email := ""
			if buyer.Email != nil {
				email = strings.ToLower(*buyer.Email)
			}
			if !strings.Contains(strings.ToLower(buyer.FullName), term) &&
				!strings.Contains(buyer.Phone, term) &&
				!strings.Contains(email, term) {
				return false
			}
		}
	}
	if filter.City != nil && buyer.City != *filter.City {
		return false
	}
	if filter.PropertyType != nil && buyer.PropertyType != *filter.PropertyType {
		return false
	}
	if filter.Status != nil && buyer.Status != *filter.Status {
		return false
	}
	if filter.Timeline != nil && buyer.Timeline != *filter.Timeline {
		return false
	}
	return true
}

func cloneBuyer(buyer domain.Buyer) domain.Buyer {
	copied := buyer
	copied.Email = clonePtr(buyer.Email)
	copied.BHK = clonePtr(buyer.BHK)
	copied.BudgetMin = clonePtr(buyer.BudgetMin)
	copied.BudgetMax = clonePtr(buyer.BudgetMax)
	copied.Notes = clonePtr(buyer.Notes)
	if buyer.Tags != nil {
		copied.Tags = append([]string(nil), buyer.Tags...)
	}
	return copied
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
