package rbac

import (
	"context"

	"github.com/kennarddh/asset-management-sub000/internal/apperr"
)

// Authorizer returns nil when sub may perform action on res and Forbidden otherwise.
type Authorizer interface {
	Authorize(ctx context.Context, action Action, sub Subject, res Resource) error
}

// PolicyAuthorizer checks actions against a fixed table of predicates. Unknown actions are denied.
type PolicyAuthorizer struct {
	policies map[Action]Policy
}

// NewPolicyAuthorizer returns a PolicyAuthorizer over policies, or DefaultPolicies when nil.
func NewPolicyAuthorizer(policies map[Action]Policy) *PolicyAuthorizer {
	if policies == nil {
		policies = DefaultPolicies()
	}
	return &PolicyAuthorizer{policies: policies}
}

// Authorize implements Authorizer.
func (a *PolicyAuthorizer) Authorize(ctx context.Context, action Action, sub Subject, res Resource) error {
	p, ok := a.policies[action]
	if !ok || !p(ctx, sub, res) {
		return apperr.Forbidden("not allowed to " + string(action))
	}
	return nil
}

type all []Authorizer

// All allows only when every non-nil authorizer allows; the first denial is returned.
func All(as ...Authorizer) Authorizer {
	out := make(all, 0, len(as))
	for _, a := range as {
		if a != nil {
			out = append(out, a)
		}
	}
	return out
}

func (as all) Authorize(ctx context.Context, action Action, sub Subject, res Resource) error {
	for _, a := range as {
		if err := a.Authorize(ctx, action, sub, res); err != nil {
			return err
		}
	}
	return nil
}
