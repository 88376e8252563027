// Package engine evaluates the Rego authorization policy with OPA.
package engine

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/open-policy-agent/opa/v1/rego"
	"go.uber.org/zap"

	"github.com/kennarddh/asset-management-sub000/internal/apperr"
	"github.com/kennarddh/asset-management-sub000/internal/logging"
	"github.com/kennarddh/asset-management-sub000/internal/platform/rbac"
)

// Query is the decision the policy must define.
const Query = "data.lending.authz.allow"

//go:embed authz.rego
var defaultPolicy string

// DefaultPolicy returns the embedded Rego policy.
func DefaultPolicy() string { return defaultPolicy }

// LoadPolicy returns the policy at path, or the embedded default when path is empty.
func LoadPolicy(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return defaultPolicy, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read policy %s: %w", path, err)
	}
	return string(b), nil
}

// OPAAuthorizer implements rbac.Authorizer with a prepared Rego query. Evaluation errors deny.
type OPAAuthorizer struct {
	query  rego.PreparedEvalQuery
	logger *zap.Logger
}

// NewOPAAuthorizer compiles policy and prepares the allow query.
func NewOPAAuthorizer(ctx context.Context, policy string, logger *zap.Logger) (*OPAAuthorizer, error) {
	pq, err := rego.New(
		rego.Query(Query),
		rego.Module("authz.rego", policy),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare policy: %w", err)
	}
	return &OPAAuthorizer{query: pq, logger: logging.OrNop(logger)}, nil
}

// Authorize implements rbac.Authorizer.
func (a *OPAAuthorizer) Authorize(ctx context.Context, action rbac.Action, sub rbac.Subject, res rbac.Resource) error {
	allowed, err := a.eval(ctx, buildInput(action, sub, res))
	if err != nil {
		a.logger.Error("policy evaluation failed", zap.String("action", string(action)), zap.Error(err))
		return apperr.Forbidden("policy evaluation failed")
	}
	if !allowed {
		return apperr.Forbidden("not allowed to " + string(action))
	}
	return nil
}

// HealthCheck evaluates the prepared query once against a minimal input.
func (a *OPAAuthorizer) HealthCheck(ctx context.Context) error {
	rs, err := a.query.Eval(ctx, rego.EvalInput(buildInput("", rbac.Subject{}, rbac.Resource{})))
	if err != nil {
		return fmt.Errorf("eval policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("policy query returned no result")
	}
	return nil
}

func (a *OPAAuthorizer) eval(ctx context.Context, input map[string]interface{}) (bool, error) {
	rs, err := a.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, err
	}
	return rs.Allowed(), nil
}

func buildInput(action rbac.Action, sub rbac.Subject, res rbac.Resource) map[string]interface{} {
	return map[string]interface{}{
		"action": string(action),
		"subject": map[string]interface{}{
			"id":   sub.UserID,
			"role": sub.Role,
		},
		"resource": map[string]interface{}{
			"kind":     res.Kind,
			"id":       res.ID,
			"owner_id": res.OwnerID,
		},
	}
}
