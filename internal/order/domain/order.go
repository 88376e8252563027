package domain

import (
	"errors"
	"strings"
	"time"
)

// Status is the lifecycle state of a lending order.
type Status string

const (
	StatusPending      Status = "Pending"
	StatusApproved     Status = "Approved"
	StatusRejected     Status = "Rejected"
	StatusCancelled    Status = "Cancelled"
	StatusActive       Status = "Active"
	StatusOverdue      Status = "Overdue"
	StatusReturned     Status = "Returned"
	StatusReturnedLate Status = "ReturnedLate"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusPending, StatusApproved, StatusRejected, StatusCancelled,
	StatusActive, StatusOverdue, StatusReturned, StatusReturnedLate,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// Order is a request by a user to borrow quantity units of an asset between StartAt and FinishAt.
type Order struct {
	ID          string
	Description string
	Reason      *string
	Status      Status
	Quantity    int
	UserID      string
	AssetID     string
	RequestedAt time.Time
	UpdatedAt   time.Time
	StartAt     time.Time
	FinishAt    time.Time
	ApprovedAt  *time.Time
	RejectedAt  *time.Time
	ReturnedAt  *time.Time
	CanceledAt  *time.Time
}

// Validate checks the fields a new order must carry.
func (o *Order) Validate() error {
	o.Description = strings.TrimSpace(o.Description)
	if o.UserID == "" {
		return errors.New("user is required")
	}
	if o.AssetID == "" {
		return errors.New("asset is required")
	}
	if o.Quantity <= 0 {
		return errors.New("quantity must be positive")
	}
	if o.StartAt.IsZero() || o.FinishAt.IsZero() {
		return errors.New("start and finish times are required")
	}
	if !o.FinishAt.After(o.StartAt) {
		return errors.New("finish time must be after start time")
	}
	return nil
}

// IsOverdue reports whether an active order has passed its finish time. It is late only when
// now is strictly after FinishAt, compared in whole seconds.
func IsOverdue(o *Order, now time.Time) bool {
	return o != nil && o.Status == StatusActive && now.Unix() > o.FinishAt.Unix()
}

// IsOwnedBy reports whether userID placed the order.
func (o *Order) IsOwnedBy(userID string) bool {
	return o != nil && userID != "" && o.UserID == userID
}
