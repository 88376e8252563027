// Package middleware holds the HTTP middleware chain. The request-scoped identity it sets lives in
// internal/platform/actor.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/kennarddh/asset-management-sub000/internal/apperr"
	"github.com/kennarddh/asset-management-sub000/internal/platform/actor"
	"github.com/kennarddh/asset-management-sub000/internal/server/respond"
	sessiondomain "github.com/kennarddh/asset-management-sub000/internal/session/domain"
	userdomain "github.com/kennarddh/asset-management-sub000/internal/user/domain"
)

const bearerPrefix = "bearer "

// Authenticator resolves an access token to its session and user.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*sessiondomain.Session, *userdomain.User, error)
}

// Auth requires a valid Bearer access token and records the caller's identity on the context.
func Auth(authn Authenticator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r.Header.Get("Authorization"))
			if token == "" {
				respond.Error(w, logger, apperr.Unauthorized("missing or invalid authorization"))
				return
			}
			sess, user, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				respond.Error(w, logger, err)
				return
			}
			ctx := actor.WithIdentity(r.Context(), user.ID, string(user.Role), sess.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearer returns the token from an Authorization header value, or "" if missing or malformed.
func extractBearer(v string) string {
	v = strings.TrimSpace(v)
	if len(v) < len(bearerPrefix) || !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
