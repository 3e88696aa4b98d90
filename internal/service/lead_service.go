package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/lead-intake-service/internal/domain"
	"github.com/spec-kit/lead-intake-service/internal/events"
	"github.com/spec-kit/lead-intake-service/internal/repository"
	"github.com/spec-kit/lead-intake-service/internal/schema"
	apperrors "github.com/spec-kit/lead-intake-service/pkg/errorutil"
)

// LeadService coordinates buyer lead workflows.
type LeadService struct {
	buyers     repository.BuyerRepository
	history    repository.BuyerHistoryRepository
	dispatcher events.Dispatcher
}

// LeadDependencies bundles repositories for the lead service.
type LeadDependencies struct {
	BuyerRepo   repository.BuyerRepository
	HistoryRepo repository.BuyerHistoryRepository
	Dispatcher  events.Dispatcher
}

// NewLeadService constructs the service.
func NewLeadService(deps LeadDependencies) *LeadService {
	return &LeadService{
		buyers:     deps.BuyerRepo,
		history:    deps.HistoryRepo,
		dispatcher: deps.Dispatcher,
	}
}

// LeadUpdateInput is a partial candidate state. Nil fields are left
// untouched on the stored record and never appear in the diff; a pointer
// to a zero value clears an optional field.
type LeadUpdateInput struct {
	FullName     *string `json:"fullName"`
	Email        *string `json:"email"`
	Phone        *string `json:"phone"`
	City         *string `json:"city"`
	PropertyType *string `json:"propertyType"`
	BHK          *string `json:"bhk"`
	Purpose      *string `json:"purpose"`
	BudgetMin    *int64  `json:"budgetMin"`
	BudgetMax    *int64  `json:"budgetMax"`
	Timeline     *string `json:"timeline"`
	Source       *string `json:"source"`
	Status       *string `json:"status"`
	Notes        *string `json:"notes"`
	Tags         *string `json:"tags"`
}

// LeadFilter describes listing parameters.
type LeadFilter struct {
	Search       *string
	City         *domain.City
	PropertyType *domain.PropertyType
	Status       *domain.BuyerStatus
	Timeline     *domain.Timeline
	Limit        int
	Offset       int
}

// historyDisplayLimit caps the entries returned alongside a lead detail.
const historyDisplayLimit = 5

// CreateLead validates the payload, persists a new buyer with status
// defaulting to New, and appends a "Created Lead" history entry in the
// same transaction.
func (s *LeadService) CreateLead(ctx context.Context, actor string, input schema.BuyerInput) (*domain.Buyer, error) {
	buyer, err := schema.ParseBuyer(input)
	if err != nil {
		var ferrs schema.FieldErrors
		if errors.As(err, &ferrs) {
			return nil, apperrors.NewValidationError("validation failed", ferrs.Details())
		}
		return nil, apperrors.NewValidationError("invalid payload", nil)
	}

	entry := &domain.BuyerHistory{
		ChangedBy: actor,
		Action:    domain.ActionCreatedLead,
	}
	if err := s.buyers.Create(ctx, buyer, entry); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:    events.EventLeadCreated,
		BuyerID: buyer.ID,
		Actor:   actor,
		Payload: events.LeadCreatedPayload{
			FullName:     buyer.FullName,
			City:         buyer.City,
			PropertyType: buyer.PropertyType,
			Status:       buyer.Status,
		},
	})
	return buyer, nil
}

// GetLead returns a buyer and its most recent history entries.
func (s *LeadService) GetLead(ctx context.Context, id string) (*domain.Buyer, []domain.BuyerHistory, error) {
	buyer, err := s.buyers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewNotFound("buyer", map[string]any{"id": id})
		}
		return nil, nil, apperrors.MapError(err)
	}
	history, err := s.history.ListByBuyer(ctx, id, historyDisplayLimit)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	return buyer, history, nil
}

// ListLeads returns a filtered page of buyers plus the total match count.
func (s *LeadService) ListLeads(ctx context.Context, filter LeadFilter) ([]domain.Buyer, int, error) {
	buyers, total, err := s.buyers.ListWithFilter(ctx, repository.BuyerFilter{
		Search:       filter.Search,
		City:         filter.City,
		PropertyType: filter.PropertyType,
		Status:       filter.Status,
		Timeline:     filter.Timeline,
		Limit:        filter.Limit,
		Offset:       filter.Offset,
	})
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	return buyers, total, nil
}

// ListHistory returns the newest-first audit trail for a buyer.
func (s *LeadService) ListHistory(ctx context.Context, id string, limit int) ([]domain.BuyerHistory, error) {
	if _, err := s.buyers.GetByID(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("buyer", map[string]any{"id": id})
		}
		return nil, apperrors.MapError(err)
	}
	history, err := s.history.ListByBuyer(ctx, id, limit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return history, nil
}

// UpdateLead is the optimistic-concurrency update workflow: fetch the stored
// record, reject on timestamp mismatch, merge the candidate fields, validate
// the merged state, compute the field diff, and commit the row update and
// history entry in one transaction. An empty diff writes nothing.
func (s *LeadService) UpdateLead(ctx context.Context, actor, id string, expectedUpdatedAt time.Time, input LeadUpdateInput) (*domain.Buyer, error) {
	existing, err := s.buyers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("buyer", map[string]any{"id": id})
		}
		return nil, apperrors.MapError(err)
	}

	// Timestamps round-trip through JSON, so the client-facing check runs
	// at millisecond precision. The store-level predicate below uses the
	// exact value just read, which closes the remaining race window.
	if !existing.UpdatedAt.Truncate(time.Millisecond).Equal(expectedUpdatedAt.Truncate(time.Millisecond)) {
		return nil, conflictError(existing)
	}

	merged, err := mergeLead(existing, input)
	if err != nil {
		var ferrs schema.FieldErrors
		if errors.As(err, &ferrs) {
			return nil, apperrors.NewValidationError("validation failed", ferrs.Details())
		}
		return nil, apperrors.NewValidationError("invalid payload", nil)
	}

	diff := computeDiff(existing, merged, input)
	if len(diff) == 0 {
		return existing, nil
	}

	entry := &domain.BuyerHistory{
		BuyerID:   existing.ID,
		ChangedBy: actor,
		Action:    domain.ActionUpdatedLead,
		Diff:      diff,
	}
	if err := s.buyers.UpdateWithAudit(ctx, merged, existing.UpdatedAt, entry); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			current, getErr := s.buyers.GetByID(ctx, id)
			if getErr != nil {
				return nil, apperrors.MapError(getErr)
			}
			return nil, conflictError(current)
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("buyer", map[string]any{"id": id})
		}
		return nil, apperrors.MapError(err)
	}

	changed := make([]string, 0, len(diff))
	for field := range diff {
		changed = append(changed, field)
	}
	s.publishEvent(ctx, events.Event{
		Type:    events.EventLeadUpdated,
		BuyerID: merged.ID,
		Actor:   actor,
		Payload: events.LeadUpdatedPayload{ChangedFields: changed},
	})
	return merged, nil
}

// DeleteLead removes a buyer and, via the store, its history entries.
func (s *LeadService) DeleteLead(ctx context.Context, actor, id string) error {
	buyer, err := s.buyers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("buyer", map[string]any{"id": id})
		}
		return apperrors.MapError(err)
	}
	if err := s.buyers.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("buyer", map[string]any{"id": id})
		}
		return apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:    events.EventLeadDeleted,
		BuyerID: id,
		Actor:   actor,
		Payload: events.LeadDeletedPayload{FullName: buyer.FullName},
	})
	return nil
}

func conflictError(current *domain.Buyer) error {
	return apperrors.NewConflict("record changed, please refresh and retry", map[string]any{
		"current": current,
	})
}

// mergeLead applies the candidate fields over the existing record and
// re-validates the merged state through the schema, so partial updates obey
// the same rules as creation.
func mergeLead(existing *domain.Buyer, input LeadUpdateInput) (*domain.Buyer, error) {
	in := schema.BuyerInput{
		FullName:     existing.FullName,
		Email:        existing.Email,
		Phone:        existing.Phone,
		City:         string(existing.City),
		PropertyType: string(existing.PropertyType),
		Purpose:      string(existing.Purpose),
		BudgetMin:    existing.BudgetMin,
		BudgetMax:    existing.BudgetMax,
		Timeline:     string(existing.Timeline),
		Source:       string(existing.Source),
		Status:       string(existing.Status),
		Notes:        existing.Notes,
	}
	if existing.BHK != nil {
		bhk := string(*existing.BHK)
		in.BHK = &bhk
	}
	if len(existing.Tags) > 0 {
		in.Tags = joinTags(existing.Tags)
	}

	if input.FullName != nil {
		in.FullName = *input.FullName
	}
	if input.Email != nil {
		in.Email = input.Email
	}
	if input.Phone != nil {
		in.Phone = *input.Phone
	}
	if input.City != nil {
		in.City = *input.City
	}
	if input.PropertyType != nil {
		in.PropertyType = *input.PropertyType
	}
	if input.BHK != nil {
		if *input.BHK == "" {
			in.BHK = nil
		} else {
			in.BHK = input.BHK
		}
	}
	if input.Purpose != nil {
		in.Purpose = *input.Purpose
	}
	if input.BudgetMin != nil {
		in.BudgetMin = input.BudgetMin
	}
	if input.BudgetMax != nil {
		in.BudgetMax = input.BudgetMax
	}
	if input.Timeline != nil {
		in.Timeline = *input.Timeline
	}
	if input.Source != nil {
		in.Source = *input.Source
	}
	if input.Status != nil {
		in.Status = *input.Status
	}
	if input.Notes != nil {
		in.Notes = input.Notes
	}
	if input.Tags != nil {
		in.Tags = *input.Tags
	}

	merged, err := schema.ParseBuyer(in)
	if err != nil {
		return nil, err
	}
	merged.ID = existing.ID
	merged.CreatedAt = existing.CreatedAt
	merged.UpdatedAt = existing.UpdatedAt
	return merged, nil
}

// computeDiff compares, by value, every field present in the candidate
// input against the stored record. Absent-vs-present counts as a change.
func computeDiff(existing, merged *domain.Buyer, input LeadUpdateInput) domain.Diff {
	diff := domain.Diff{}

	if input.FullName != nil && existing.FullName != merged.FullName {
		diff["fullName"] = domain.FieldChange{Old: existing.FullName, New: merged.FullName}
	}
	if input.Email != nil && !eqStrPtr(existing.Email, merged.Email) {
		diff["email"] = domain.FieldChange{Old: strPtrValue(existing.Email), New: strPtrValue(merged.Email)}
	}
	if input.Phone != nil && existing.Phone != merged.Phone {
		diff["phone"] = domain.FieldChange{Old: existing.Phone, New: merged.Phone}
	}
	if input.City != nil && existing.City != merged.City {
		diff["city"] = domain.FieldChange{Old: existing.City, New: merged.City}
	}
	if input.PropertyType != nil && existing.PropertyType != merged.PropertyType {
		diff["propertyType"] = domain.FieldChange{Old: existing.PropertyType, New: merged.PropertyType}
	}
	if input.BHK != nil && !eqBHKPtr(existing.BHK, merged.BHK) {
		diff["bhk"] = domain.FieldChange{Old: bhkPtrValue(existing.BHK), New: bhkPtrValue(merged.BHK)}
	}
	if input.Purpose != nil && existing.Purpose != merged.Purpose {
		diff["purpose"] = domain.FieldChange{Old: existing.Purpose, New: merged.Purpose}
	}
	if input.BudgetMin != nil && !eqInt64Ptr(existing.BudgetMin, merged.BudgetMin) {
		diff["budgetMin"] = domain.FieldChange{Old: int64PtrValue(existing.BudgetMin), New: int64PtrValue(merged.BudgetMin)}
	}
	if input.BudgetMax != nil && !eqInt64Ptr(existing.BudgetMax, merged.BudgetMax) {
		diff["budgetMax"] = domain.FieldChange{Old: int64PtrValue(existing.BudgetMax), New: int64PtrValue(merged.BudgetMax)}
	}
	if input.Timeline != nil && existing.Timeline != merged.Timeline {
		diff["timeline"] = domain.FieldChange{Old: existing.Timeline, New: merged.Timeline}
	}
	if input.Source != nil && existing.Source != merged.Source {
		diff["source"] = domain.FieldChange{Old: existing.Source, New: merged.Source}
	}
	if input.Status != nil && existing.Status != merged.Status {
		diff["status"] = domain.FieldChange{Old: existing.Status, New: merged.Status}
	}
	if input.Notes != nil && !eqStrPtr(existing.Notes, merged.Notes) {
		diff["notes"] = domain.FieldChange{Old: strPtrValue(existing.Notes), New: strPtrValue(merged.Notes)}
	}
	if input.Tags != nil && !eqTags(existing.Tags, merged.Tags) {
		diff["tags"] = domain.FieldChange{Old: existing.Tags, New: merged.Tags}
	}

	return diff
}

func (s *LeadService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}

func eqStrPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func eqBHKPtr(a, b *domain.BHK) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func eqInt64Ptr(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func eqTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func strPtrValue(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func bhkPtrValue(p *domain.BHK) any {
	if p == nil {
		return nil
	}
	return *p
}

func int64PtrValue(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
