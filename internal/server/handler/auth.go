// Package handler holds the REST handlers for authentication and lending orders.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kennarddh/asset-management-sub000/internal/apperr"
	identityservice "github.com/kennarddh/asset-management-sub000/internal/identity/service"
	"github.com/kennarddh/asset-management-sub000/internal/logging"
	"github.com/kennarddh/asset-management-sub000/internal/platform/actor"
	"github.com/kennarddh/asset-management-sub000/internal/platform/rbac"
	"github.com/kennarddh/asset-management-sub000/internal/server/respond"
	sessiondomain "github.com/kennarddh/asset-management-sub000/internal/session/domain"
	userdomain "github.com/kennarddh/asset-management-sub000/internal/user/domain"
)

// RefreshCookie is the name of the HTTP-only cookie carrying the refresh token.
const RefreshCookie = "refreshToken"

const refreshCookiePath = "/api/v1/auth"

// AuthService is the session manager the auth handlers call.
type AuthService interface {
	Login(ctx context.Context, username, password, ip string) (*identityservice.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*identityservice.TokenPair, error)
	Logout(ctx context.Context, sessionID string) error
	Revoke(ctx context.Context, sessionID string) error
	RevokeAllByUser(ctx context.Context, userID string) (int64, error)
	ListActiveByUser(ctx context.Context, userID string) ([]*sessiondomain.Session, error)
	GetSession(ctx context.Context, sessionID string) (*sessiondomain.Session, error)
}

// AuthHandler serves /api/v1/auth.
type AuthHandler struct {
	auth         AuthService
	authz        rbac.Authorizer
	secureCookie bool
	logger       *zap.Logger
}

// NewAuthHandler returns an AuthHandler. secureCookie marks the refresh cookie Secure.
func NewAuthHandler(auth AuthService, authz rbac.Authorizer, secureCookie bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, authz: authz, secureCookie: secureCookie, logger: logging.OrNop(logger)}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

type loginResponse struct {
	AccessToken     string       `json:"accessToken"`
	AccessExpiresAt time.Time    `json:"accessExpiresAt"`
	User            userResponse `json:"user"`
}

type refreshResponse struct {
	AccessToken     string    `json:"accessToken"`
	AccessExpiresAt time.Time `json:"accessExpiresAt"`
}

type sessionResponse struct {
	ID            string    `json:"id"`
	IPAddress     string    `json:"ipAddress"`
	CreatedAt     time.Time `json:"createdAt"`
	LastRefreshAt time.Time `json:"lastRefreshAt"`
	ExpireAt      time.Time `json:"expireAt"`
	Current       bool      `json:"current"`
}

type revokeAllResponse struct {
	Revoked int64 `json:"revoked"`
}

// Login handles POST /login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		respond.BadRequest(w, "username and password are required")
		return
	}
	res, err := h.auth.Login(r.Context(), req.Username, req.Password, actor.GetClientIP(r.Context()))
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	h.setRefreshCookie(w, res.RefreshToken, res.RefreshExpiresAt)
	respond.JSON(w, http.StatusOK, loginResponse{
		AccessToken:     res.AccessToken,
		AccessExpiresAt: res.AccessExpiresAt,
		User:            toUserResponse(res.User),
	})
}

// Refresh handles POST /refresh using the refresh cookie.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(RefreshCookie)
	if err != nil || c.Value == "" {
		respond.Error(w, h.logger, apperr.Unauthorized("refresh token required"))
		return
	}
	pair, err := h.auth.Refresh(r.Context(), c.Value)
	if err != nil {
		if respond.Status(err) == http.StatusUnauthorized {
			h.clearRefreshCookie(w)
		}
		respond.Error(w, h.logger, err)
		return
	}
	h.setRefreshCookie(w, pair.RefreshToken, pair.RefreshExpiresAt)
	respond.JSON(w, http.StatusOK, refreshResponse{AccessToken: pair.AccessToken, AccessExpiresAt: pair.AccessExpiresAt})
}

// Logout handles POST /logout, ending the caller's current session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID, _ := actor.GetSessionID(r.Context())
	if err := h.auth.Logout(r.Context(), sessionID); err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	h.clearRefreshCookie(w)
	respond.NoContent(w)
}

// ListSessions handles GET /sessions.
func (h *AuthHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID, _ := actor.GetUserID(r.Context())
	current, _ := actor.GetSessionID(r.Context())
	sessions, err := h.auth.ListActiveByUser(r.Context(), userID)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionResponse{
			ID:            s.ID,
			IPAddress:     s.IPAddress,
			CreatedAt:     s.CreatedAt,
			LastRefreshAt: s.LastRefreshAt,
			ExpireAt:      s.ExpireAt,
			Current:       s.ID == current,
		})
	}
	respond.JSON(w, http.StatusOK, out)
}

// RevokeSession handles DELETE /sessions/{id}. Members may revoke only their own sessions.
func (h *AuthHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	sub, err := rbac.SubjectFromContext(r.Context())
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	sess, err := h.auth.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	res := rbac.Resource{Kind: "session", ID: sess.ID, OwnerID: sess.UserID}
	if err := h.authz.Authorize(r.Context(), rbac.ActionSessionRevoke, sub, res); err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	if err := h.auth.Revoke(r.Context(), sess.ID); err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.NoContent(w)
}

// RevokeAll handles POST /sessions/revoke-all for the caller.
func (h *AuthHandler) RevokeAll(w http.ResponseWriter, r *http.Request) {
	userID, _ := actor.GetUserID(r.Context())
	n, err := h.auth.RevokeAllByUser(r.Context(), userID)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	h.clearRefreshCookie(w)
	respond.JSON(w, http.StatusOK, revokeAllResponse{Revoked: n})
}

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    token,
		Path:     refreshCookiePath,
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

func toUserResponse(u *userdomain.User) userResponse {
	if u == nil {
		return userResponse{}
	}
	return userResponse{ID: u.ID, Username: u.Username, Name: u.Name, Role: string(u.Role)}
}
