// Package events publishes order and session lifecycle events after their unit of work commits.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	OrderCreated   = "order.created"
	OrderApproved  = "order.approved"
	OrderRejected  = "order.rejected"
	OrderCancelled = "order.cancelled"
	OrderActivated = "order.activated"
	OrderOverdue   = "order.overdue"
	OrderReturned  = "order.returned"

	SessionCreated       = "session.created"
	SessionRefreshed     = "session.refreshed"
	SessionReuseDetected = "session.reuse_detected"
	SessionLoggedOut     = "session.logged_out"
	SessionRevoked       = "session.revoked"
)

// Event is the JSON payload written to the events topic. Subject is the id of the order or
// session the event is about and doubles as the partition key.
type Event struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Subject    string            `json:"subject"`
	UserID     string            `json:"userId,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// New returns an event with a fresh id.
func New(typ, subject, userID string, at time.Time, attrs map[string]string) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       typ,
		Subject:    subject,
		UserID:     userID,
		OccurredAt: at.UTC(),
		Attributes: attrs,
	}
}
