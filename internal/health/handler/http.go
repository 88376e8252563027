// Package handler serves the readiness endpoint.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/kennarddh/asset-management-sub000/internal/server/respond"
)

// Pinger checks database connectivity (e.g. *pgxpool.Pool).
type Pinger interface {
	Ping(ctx context.Context) error
}

// PolicyChecker checks the policy engine (e.g. the OPA authorizer).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

const checkTimeout = 2 * time.Second

// Handler reports SERVING when every configured dependency responds. Nil dependencies are skipped.
type Handler struct {
	pinger Pinger
	policy PolicyChecker
}

// NewHandler returns a health Handler.
func NewHandler(pinger Pinger, policy PolicyChecker) *Handler {
	return &Handler{pinger: pinger, policy: policy}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	resp := healthResponse{Status: "SERVING", Checks: map[string]string{}}
	code := http.StatusOK
	check := func(name string, err error) {
		if err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "NOT_SERVING"
			code = http.StatusServiceUnavailable
			return
		}
		resp.Checks[name] = "ok"
	}
	if h.pinger != nil {
		check("database", h.pinger.Ping(ctx))
	}
	if h.policy != nil {
		check("policy", h.policy.HealthCheck(ctx))
	}
	respond.JSON(w, code, resp)
}
