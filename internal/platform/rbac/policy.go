// Package rbac decides whether an authenticated caller may perform an action on a resource.
package rbac

import (
	"context"

	"github.com/kennarddh/asset-management-sub000/internal/apperr"
	"github.com/kennarddh/asset-management-sub000/internal/platform/actor"
)

// Action names an authorized operation.
type Action string

const (
	ActionOrderCreate   Action = "order:create"
	ActionOrderRead     Action = "order:read"
	ActionOrderListAll  Action = "order:list_all"
	ActionOrderApprove  Action = "order:approve"
	ActionOrderReject   Action = "order:reject"
	ActionOrderCancel   Action = "order:cancel"
	ActionOrderReturn   Action = "order:return"
	ActionSessionRevoke Action = "session:revoke"
)

// RoleAdmin is the role string carried on admin identities.
const RoleAdmin = "admin"

// Subject is the caller.
type Subject struct {
	UserID string
	Role   string
}

// Resource is the object acted on. OwnerID is empty for collection-level actions.
type Resource struct {
	Kind    string
	ID      string
	OwnerID string
}

// Policy is a composable authorization predicate.
type Policy func(ctx context.Context, sub Subject, res Resource) bool

// And allows only when every policy allows. With no policies it allows.
func And(ps ...Policy) Policy {
	return func(ctx context.Context, sub Subject, res Resource) bool {
		for _, p := range ps {
			if !p(ctx, sub, res) {
				return false
			}
		}
		return true
	}
}

// Or allows when any policy allows. With no policies it denies.
func Or(ps ...Policy) Policy {
	return func(ctx context.Context, sub Subject, res Resource) bool {
		for _, p := range ps {
			if p(ctx, sub, res) {
				return true
			}
		}
		return false
	}
}

// Not inverts p.
func Not(p Policy) Policy {
	return func(ctx context.Context, sub Subject, res Resource) bool { return !p(ctx, sub, res) }
}

// IsAdmin allows admins.
func IsAdmin(_ context.Context, sub Subject, _ Resource) bool { return sub.Role == RoleAdmin }

// IsOwner allows the owner of the resource.
func IsOwner(_ context.Context, sub Subject, res Resource) bool {
	return sub.UserID != "" && res.OwnerID == sub.UserID
}

// IsAuthenticated allows any identified caller.
func IsAuthenticated(_ context.Context, sub Subject, _ Resource) bool { return sub.UserID != "" }

// DefaultPolicies grants admins every action. Members may create orders, and may read, cancel
// or revoke what they own.
func DefaultPolicies() map[Action]Policy {
	ownerOrAdmin := Or(IsAdmin, IsOwner)
	return map[Action]Policy{
		ActionOrderCreate:   IsAuthenticated,
		ActionOrderRead:     ownerOrAdmin,
		ActionOrderListAll:  IsAdmin,
		ActionOrderApprove:  IsAdmin,
		ActionOrderReject:   IsAdmin,
		ActionOrderCancel:   ownerOrAdmin,
		ActionOrderReturn:   IsAdmin,
		ActionSessionRevoke: ownerOrAdmin,
	}
}

// SubjectFromContext returns the caller recorded by the auth middleware, or Unauthorized.
func SubjectFromContext(ctx context.Context) (Subject, error) {
	userID, ok := actor.GetUserID(ctx)
	if !ok || userID == "" {
		return Subject{}, apperr.Unauthorized("authentication required")
	}
	role, _ := actor.GetRole(ctx)
	return Subject{UserID: userID, Role: role}, nil
}
