package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/lead-intake-service/internal/domain"
	"github.com/spec-kit/lead-intake-service/internal/repository"
	"github.com/spec-kit/lead-intake-service/internal/schema"
	apperrors "github.com/spec-kit/lead-intake-service/pkg/errorutil"
)

const testActor = "demo@example.com"

func newTestService() (*LeadService, *repository.MemoryStore) {
	store := repository.NewMemoryStore()
	svc := NewLeadService(LeadDependencies{
		BuyerRepo:   store,
		HistoryRepo: store,
	})
	return svc, store
}

func createLead(t *testing.T, svc *LeadService) *domain.Buyer {
	t.Helper()
	email := "alice@example.com"
	bhk := "2"
	min := int64(5000000)
	max := int64(7000000)
	buyer, err := svc.CreateLead(context.Background(), testActor, schema.BuyerInput{
		FullName:     "Alice Smith",
		Email:        &email,
		Phone:        "9876543210",
		City:         "Chandigarh",
		PropertyType: "Apartment",
		BHK:          &bhk,
		Purpose:      "Buy",
		BudgetMin:    &min,
		BudgetMax:    &max,
		Timeline:     "0-3m",
		Source:       "Website",
		Tags:         "hot,priority",
	})
	require.NoError(t, err)
	return buyer
}

// fullPayloadFor mirrors every stored field back as a candidate value, the
// way a form submit resends the entire record.
func fullPayloadFor(buyer *domain.Buyer) LeadUpdateInput {
	fullName := buyer.FullName
	phone := buyer.Phone
	city := string(buyer.City)
	propertyType := string(buyer.PropertyType)
	purpose := string(buyer.Purpose)
	timeline := string(buyer.Timeline)
	source := string(buyer.Source)
	status := string(buyer.Status)
	tags := ""
	for i, tag := range buyer.Tags {
		if i > 0 {
			tags += ","
		}
		tags += tag
	}
	input := LeadUpdateInput{
		FullName:     &fullName,
		Email:        buyer.Email,
		Phone:        &phone,
		City:         &city,
		PropertyType: &propertyType,
		Purpose:      &purpose,
		BudgetMin:    buyer.BudgetMin,
		BudgetMax:    buyer.BudgetMax,
		Timeline:     &timeline,
		Source:       &source,
		Status:       &status,
		Notes:        buyer.Notes,
		Tags:         &tags,
	}
	if buyer.BHK != nil {
		bhk := string(*buyer.BHK)
		input.BHK = &bhk
	}
	return input
}

func TestCreateLeadDefaultsStatusAndRecordsHistory(t *testing.T) {
	svc, _ := newTestService()
	buyer := createLead(t, svc)

	require.NotEmpty(t, buyer.ID)
	require.Equal(t, domain.StatusNew, buyer.Status)

	_, history, err := svc.GetLead(context.Background(), buyer.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, domain.ActionCreatedLead, history[0].Action)
	require.Equal(t, testActor, history[0].ChangedBy)
	require.Empty(t, history[0].Diff)
}

func TestCreateLeadRejectsInvalidPayload(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.CreateLead(context.Background(), testActor, schema.BuyerInput{
		FullName:     "Bob",
		Phone:        "9876543210",
		City:         "Mohali",
		PropertyType: "Villa", // bhk missing
		Purpose:      "Buy",
		Timeline:     "Exploring",
		Source:       "Call",
	})
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, "VALIDATION_FAILED", domainErr.Code)
	require.Contains(t, domainErr.Details, "bhk")
}

func TestUpdateLeadDiffContainsOnlyChangedFields(t *testing.T) {
	svc, _ := newTestService()
	buyer := createLead(t, svc)

	input := fullPayloadFor(buyer)
	qualified := string(domain.StatusQualified)
	input.Status = &qualified

	updated, err := svc.UpdateLead(context.Background(), testActor, buyer.ID, buyer.UpdatedAt, input)
	require.NoError(t, err)
	require.Equal(t, domain.StatusQualified, updated.Status)
	require.True(t, updated.UpdatedAt.After(buyer.UpdatedAt))

	_, history, err := svc.GetLead(context.Background(), buyer.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	entry := history[0]
	require.Equal(t, domain.ActionUpdatedLead, entry.Action)
	require.Len(t, entry.Diff, 1, "diff must contain exactly the changed field, got %v", entry.Diff)
	change, ok := entry.Diff["status"]
	require.True(t, ok)
	require.Equal(t, domain.StatusNew, change.Old)
	require.Equal(t, domain.StatusQualified, change.New)
}

func TestUpdateLeadIdempotentResubmit(t *testing.T) {
	svc, _ := newTestService()
	buyer := createLead(t, svc)

	input := fullPayloadFor(buyer)
	qualified := string(domain.StatusQualified)
	input.Status = &qualified

	first, err := svc.UpdateLead(context.Background(), testActor, buyer.ID, buyer.UpdatedAt, input)
	require.NoError(t, err)

	// Resubmit the same payload with a refreshed timestamp: it succeeds,
	// the diff is empty, and no history entry is appended.
	second, err := svc.UpdateLead(context.Background(), testActor, buyer.ID, first.UpdatedAt, input)
	require.NoError(t, err)
	require.Equal(t, first.UpdatedAt, second.UpdatedAt)

	_, history, err := svc.GetLead(context.Background(), buyer.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
}

func TestUpdateLeadStaleTimestampConflicts(t *testing.T) {
	svc, store := newTestService()
	buyer := createLead(t, svc)

	input := fullPayloadFor(buyer)
	dropped := string(domain.StatusDropped)
	input.Status = &dropped

	stale := buyer.UpdatedAt.Add(-time.Hour)
	_, err := svc.UpdateLead(context.Background(), testActor, buyer.ID, stale, input)

	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, "CONFLICT", domainErr.Code)
	require.Contains(t, domainErr.Details, "current")

	// The stored record must be untouched.
	stored, err := store.GetByID(context.Background(), buyer.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusNew, stored.Status)
	require.True(t, stored.UpdatedAt.Equal(buyer.UpdatedAt))
}

func TestUpdateLeadAtomicRollbackOnHistoryFailure(t *testing.T) {
	svc, store := newTestService()
	buyer := createLead(t, svc)

	store.HistoryWriteErr = errors.New("history write failed")

	input := fullPayloadFor(buyer)
	contacted := string(domain.StatusContacted)
	input.Status = &contacted

	_, err := svc.UpdateLead(context.Background(), testActor, buyer.ID, buyer.UpdatedAt, input)
	require.Error(t, err)

	// Neither the buyer write nor the history entry may be visible.
	store.HistoryWriteErr = nil
	stored, history, err := svc.GetLead(context.Background(), buyer.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusNew, stored.Status)
	require.True(t, stored.UpdatedAt.Equal(buyer.UpdatedAt))
	require.Len(t, history, 1)
}

func TestUpdateLeadPartialLeavesOtherFieldsUntouched(t *testing.T) {
	svc, _ := newTestService()
	buyer := createLead(t, svc)

	notes := "prefers a corner unit"
	updated, err := svc.UpdateLead(context.Background(), testActor, buyer.ID, buyer.UpdatedAt, LeadUpdateInput{
		Notes: &notes,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.Notes)
	require.Equal(t, notes, *updated.Notes)
	require.Equal(t, buyer.FullName, updated.FullName)
	require.Equal(t, buyer.Tags, updated.Tags)
	require.Equal(t, buyer.Status, updated.Status)

	_, history, err := svc.GetLead(context.Background(), buyer.ID)
	require.NoError(t, err)
	entry := history[0]
	require.Len(t, entry.Diff, 1)
	require.Contains(t, entry.Diff, "notes")
}

func TestUpdateLeadValidatesMergedState(t *testing.T) {
	svc, _ := newTestService()
	buyer := createLead(t, svc) // budgetMin 5,000,000

	badMax := int64(3000000)
	_, err := svc.UpdateLead(context.Background(), testActor, buyer.ID, buyer.UpdatedAt, LeadUpdateInput{
		BudgetMax: &badMax,
	})
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, "VALIDATION_FAILED", domainErr.Code)
	require.Contains(t, domainErr.Details, "budgetMax")
}

func TestUpdateLeadNotFound(t *testing.T) {
	svc, _ := newTestService()

	name := "Nobody"
	_, err := svc.UpdateLead(context.Background(), testActor, "missing-id", time.Now(), LeadUpdateInput{
		FullName: &name,
	})
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, "NOT_FOUND", domainErr.Code)
}

func TestDeleteLeadRemovesBuyerAndHistory(t *testing.T) {
	svc, store := newTestService()
	buyer := createLead(t, svc)

	require.NoError(t, svc.DeleteLead(context.Background(), testActor, buyer.ID))

	_, _, err := svc.GetLead(context.Background(), buyer.ID)
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, "NOT_FOUND", domainErr.Code)

	history, err := store.ListByBuyer(context.Background(), buyer.ID, 10)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestListLeadsFiltersAndCounts(t *testing.T) {
	svc, _ := newTestService()
	alice := createLead(t, svc)

	_, err := svc.CreateLead(context.Background(), testActor, schema.BuyerInput{
		FullName:     "Bob Verma",
		Phone:        "9123456789",
		City:         "Mohali",
		PropertyType: "Plot",
		Purpose:      "Buy",
		Timeline:     "Exploring",
		Source:       "Referral",
	})
	require.NoError(t, err)

	search := "alice"
	buyers, total, err := svc.ListLeads(context.Background(), LeadFilter{Search: &search})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, buyers, 1)
	require.Equal(t, alice.ID, buyers[0].ID)

	city := domain.CityMohali
	buyers, total, err = svc.ListLeads(context.Background(), LeadFilter{City: &city})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "Bob Verma", buyers[0].FullName)
}
