package events

import (
	"time"

	"github.com/spec-kit/lead-intake-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventLeadCreated EventType = "lead_created"
	EventLeadUpdated EventType = "lead_updated"
	EventLeadDeleted EventType = "lead_deleted"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	BuyerID   string      `json:"buyer_id"`
	Actor     string      `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// LeadCreatedPayload payload.
type LeadCreatedPayload struct {
	FullName     string              `json:"full_name"`
	City         domain.City         `json:"city"`
	PropertyType domain.PropertyType `json:"property_type"`
	Status       domain.BuyerStatus  `json:"status"`
}

// LeadUpdatedPayload payload.
type LeadUpdatedPayload struct {
	ChangedFields []string `json:"changed_fields"`
}

// LeadDeletedPayload payload.
type LeadDeletedPayload struct {
	FullName string `json:"full_name"`
}
