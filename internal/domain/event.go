package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a domain event published after a command commits
type EventType string

const (
	EventOfferSubmitted       EventType = "offer.submitted"
	EventInvoiceAdjudicated   EventType = "invoice.adjudicated"
	EventCostOfFundsPublished EventType = "cost_of_funds.published"
	EventInvoiceStateChanged  EventType = "invoice.state_changed"
)

// Event is a notification of a committed change
type Event struct {
	ID         uuid.UUID      `json:"id"`
	Type       EventType      `json:"type"`
	Key        string         `json:"key"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload"`
}

// NewEvent builds an event keyed by key (usually the invoice or fund id)
func NewEvent(eventType EventType, key string, occurredAt time.Time, payload map[string]any) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		Key:        key,
		OccurredAt: occurredAt,
		Payload:    payload,
	}
}
