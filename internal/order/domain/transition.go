package domain

import "time"

// Operation names a guarded transition. The names appear in InvalidState errors.
type Operation string

const (
	OpApprove     Operation = "approve"
	OpReject      Operation = "reject"
	OpCancel      Operation = "cancel"
	OpReturn      Operation = "return"
	OpActivate    Operation = "activate"
	OpMarkOverdue Operation = "markOverdue"
)

// InvalidState reasons.
const (
	// ReasonProcessed: the order's status forbids the operation.
	ReasonProcessed = "processed"
	// ReasonNotDue: a scheduled transition was attempted before its boundary time.
	ReasonNotDue = "notDue"
)

var allowedFrom = map[Operation][]Status{
	OpApprove:     {StatusPending},
	OpReject:      {StatusPending},
	OpCancel:      {StatusPending, StatusApproved, StatusRejected},
	OpReturn:      {StatusActive, StatusOverdue},
	OpActivate:    {StatusApproved},
	OpMarkOverdue: {StatusActive},
}

// AllowedFrom returns the statuses op may be applied to.
func AllowedFrom(op Operation) []Status {
	return append([]Status(nil), allowedFrom[op]...)
}

// CanApply reports whether op is permitted from status s.
func CanApply(op Operation, s Status) bool {
	for _, v := range allowedFrom[op] {
		if v == s {
			return true
		}
	}
	return false
}

// Due reports whether the time boundary of a scheduled operation has been reached: StartAt for
// activate, FinishAt (strictly after) for markOverdue. User operations are always due.
func Due(op Operation, o *Order, now time.Time) bool {
	switch op {
	case OpActivate:
		return now.Unix() >= o.StartAt.Unix()
	case OpMarkOverdue:
		return now.Unix() > o.FinishAt.Unix()
	}
	return true
}

// ReturnStatus is the status a return at now produces: Returned when now is at or before
// FinishAt (whole seconds), ReturnedLate otherwise. Overdue orders are always late.
func ReturnStatus(o *Order, now time.Time) Status {
	if o.Status == StatusOverdue || now.Unix() > o.FinishAt.Unix() {
		return StatusReturnedLate
	}
	return StatusReturned
}

// Apply performs op on o at now, setting the new status and its timestamp. It does not check
// the guard; callers check CanApply first. reason is stored for approve and reject only.
func Apply(o *Order, op Operation, now time.Time, reason string) {
	t := now.UTC()
	switch op {
	case OpApprove:
		o.Status = StatusApproved
		o.ApprovedAt = &t
		o.Reason = &reason
	case OpReject:
		o.Status = StatusRejected
		o.RejectedAt = &t
		o.Reason = &reason
	case OpCancel:
		o.Status = StatusCancelled
		o.CanceledAt = &t
	case OpReturn:
		o.Status = ReturnStatus(o, now)
		o.ReturnedAt = &t
	case OpActivate:
		o.Status = StatusActive
	case OpMarkOverdue:
		o.Status = StatusOverdue
	}
	o.UpdatedAt = t
}

// InitialStatus is the status of a newly created order for an asset.
func InitialStatus(requiresApproval bool) Status {
	if requiresApproval {
		return StatusPending
	}
	return StatusActive
}
