package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kennarddh/asset-management-sub000/internal/apperr"
	"github.com/kennarddh/asset-management-sub000/internal/platform/rbac"
)

func newDefault(t *testing.T) *OPAAuthorizer {
	t.Helper()
	a, err := NewOPAAuthorizer(context.Background(), DefaultPolicy(), nil)
	if err != nil {
		t.Fatalf("NewOPAAuthorizer: %v", err)
	}
	return a
}

func TestOPAAuthorizer_HealthCheck(t *testing.T) {
	if err := newDefault(t).HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

// The embedded policy must agree with rbac.DefaultPolicies.
func TestOPAAuthorizer_MatchesDefaultPolicies(t *testing.T) {
	opa := newDefault(t)
	preds := rbac.NewPolicyAuthorizer(nil)
	ctx := context.Background()

	subjects := []rbac.Subject{
		{UserID: "admin-1", Role: rbac.RoleAdmin},
		{UserID: "member-1", Role: "member"},
		{UserID: "member-2", Role: "member"},
		{},
	}
	resources := []rbac.Resource{
		{Kind: "order", ID: "o1", OwnerID: "member-1"},
		{Kind: "order"},
		{Kind: "session", ID: "s1", OwnerID: "member-1"},
	}
	actions := []rbac.Action{
		rbac.ActionOrderCreate, rbac.ActionOrderRead, rbac.ActionOrderListAll, rbac.ActionOrderApprove,
		rbac.ActionOrderReject, rbac.ActionOrderCancel, rbac.ActionOrderReturn, rbac.ActionSessionRevoke,
	}
	for _, action := range actions {
		for _, sub := range subjects {
			for _, res := range resources {
				want := preds.Authorize(ctx, action, sub, res) == nil
				got := opa.Authorize(ctx, action, sub, res) == nil
				if got != want {
					t.Errorf("%s by %+v on %+v: opa allow=%v, predicates allow=%v", action, sub, res, got, want)
				}
			}
		}
	}
}

func TestOPAAuthorizer_DenyReturnsForbidden(t *testing.T) {
	err := newDefault(t).Authorize(context.Background(), rbac.ActionOrderApprove,
		rbac.Subject{UserID: "member-1", Role: "member"}, rbac.Resource{Kind: "order"})
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("err = %v, want Forbidden", err)
	}
}

func TestOPAAuthorizer_EvaluationErrorDenies(t *testing.T) {
	// allow is not a boolean when two rules produce conflicting values.
	policy := `package lending.authz

allow = true if input.action == "x"

allow = false if input.action == "x"
`
	a, err := NewOPAAuthorizer(context.Background(), policy, nil)
	if err != nil {
		t.Fatalf("NewOPAAuthorizer: %v", err)
	}
	err = a.Authorize(context.Background(), rbac.Action("x"), rbac.Subject{UserID: "u", Role: rbac.RoleAdmin}, rbac.Resource{})
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("err = %v, want Forbidden", err)
	}
}

func TestNewOPAAuthorizer_InvalidPolicy(t *testing.T) {
	if _, err := NewOPAAuthorizer(context.Background(), "package lending.authz\nallow if {", nil); err == nil {
		t.Error("expected compile error")
	}
}

func TestLoadPolicy(t *testing.T) {
	got, err := LoadPolicy("  ")
	if err != nil || got != DefaultPolicy() {
		t.Fatalf("LoadPolicy(empty) = %q, %v; want default", got, err)
	}

	path := filepath.Join(t.TempDir(), "custom.rego")
	custom := "package lending.authz\n\ndefault allow := false\n"
	if err := os.WriteFile(path, []byte(custom), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err = LoadPolicy(path)
	if err != nil || got != custom {
		t.Fatalf("LoadPolicy(file) = %q, %v", got, err)
	}

	if _, err := LoadPolicy(filepath.Join(t.TempDir(), "missing.rego")); err == nil {
		t.Error("expected error for missing file")
	}
}
