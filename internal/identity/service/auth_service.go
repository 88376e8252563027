package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kennarddh/asset-management-sub000/internal/apperr"
	"github.com/kennarddh/asset-management-sub000/internal/audit"
	auditdomain "github.com/kennarddh/asset-management-sub000/internal/audit/domain"
	"github.com/kennarddh/asset-management-sub000/internal/db/uow"
	"github.com/kennarddh/asset-management-sub000/internal/events"
	"github.com/kennarddh/asset-management-sub000/internal/logging"
	"github.com/kennarddh/asset-management-sub000/internal/security"
	sessiondomain "github.com/kennarddh/asset-management-sub000/internal/session/domain"
	userdomain "github.com/kennarddh/asset-management-sub000/internal/user/domain"
)

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByUsername(ctx context.Context, username string) (*userdomain.User, error)
}

// SessionRepo is the minimal session repository needed by the auth service.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	GetByAccessJTI(ctx context.Context, jti string) (*sessiondomain.Session, error)
	GetByIDForUpdate(ctx context.Context, id string) (*sessiondomain.Session, error)
	ListActiveByUser(ctx context.Context, userID string, activeSince time.Time) ([]*sessiondomain.Session, error)
	Create(ctx context.Context, s *sessiondomain.Session) error
	Rotate(ctx context.Context, s *sessiondomain.Session) error
	SetLoggedOut(ctx context.Context, id string, at time.Time) error
	SetRevoked(ctx context.Context, id string, at time.Time) error
	RevokeAllActiveByUser(ctx context.Context, userID string, at, activeSince time.Time) (int64, error)
}

// TokenPair is a freshly signed access/refresh pair for one session. AccessToken carries the
// "Bearer " prefix.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	SessionID        string
}

// LoginResult is the outcome of a successful Login.
type LoginResult struct {
	TokenPair
	User *userdomain.User
}

// AuthService manages sessions and the tokens bound to them. Every mutating call is one unit of
// work. A token is valid only while its jti is the one stored on the session, so rotating the jti
// pair invalidates the previous tokens.
type AuthService struct {
	tx         uow.Transactor
	users      UserRepo
	sessions   SessionRepo
	hasher     *security.Hasher
	tokens     *security.TokenProvider
	refreshTTL time.Duration
	tolerance  time.Duration
	audit      audit.AuditLogger
	events     events.Publisher
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures an AuthService.
type Option func(*AuthService)

// WithClock replaces time.Now. The token provider keeps its own clock.
func WithClock(now func() time.Time) Option { return func(s *AuthService) { s.now = now } }

// WithAudit records authentication events through l.
func WithAudit(l audit.AuditLogger) Option { return func(s *AuthService) { s.audit = l } }

// WithPublisher publishes session events through p after each commit.
func WithPublisher(p events.Publisher) Option { return func(s *AuthService) { s.events = p } }

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option { return func(s *AuthService) { s.logger = logging.OrNop(l) } }

// NewAuthService returns an AuthService. refreshTTL is the session lifetime; tolerance is the
// clock skew accepted on expiry and reuse checks.
func NewAuthService(
	tx uow.Transactor,
	users UserRepo,
	sessions SessionRepo,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	refreshTTL, tolerance time.Duration,
	opts ...Option,
) *AuthService {
	s := &AuthService{
		tx:         tx,
		users:      users,
		sessions:   sessions,
		hasher:     hasher,
		tokens:     tokens,
		refreshTTL: refreshTTL,
		tolerance:  tolerance,
		audit:      audit.Nop{},
		events:     events.Nop{},
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Login checks the credentials and opens a new session from ip. Unknown users still pay one
// bcrypt comparison so the response does not reveal whether the username exists.
func (s *AuthService) Login(ctx context.Context, username, password, ip string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	var (
		result   *LoginResult
		sess     *sessiondomain.Session
		failedID string
	)
	err := s.tx.Execute(ctx, func(ctx context.Context) error {
		user, err := s.users.GetByUsername(ctx, username)
		if err != nil {
			return err
		}
		if user == nil {
			_ = s.hasher.CompareDummy([]byte(password))
			return apperr.Unauthorized("invalid credentials")
		}
		if err := s.hasher.Compare(user.PasswordHash, []byte(password)); err != nil {
			failedID = user.ID
			return apperr.Unauthorized("invalid credentials")
		}
		if !user.CanLogin() {
			failedID = user.ID
			return apperr.Unauthorized("account disabled")
		}
		now := s.clock()
		sess = &sessiondomain.Session{
			ID:            uuid.New().String(),
			UserID:        user.ID,
			IPAddress:     ip,
			CreatedAt:     now,
			LastRefreshAt: now,
			ExpireAt:      now.Add(s.refreshTTL),
		}
		pair, err := s.bindTokens(sess, now)
		if err != nil {
			return err
		}
		if err := s.sessions.Create(ctx, sess); err != nil {
			return err
		}
		result = &LoginResult{TokenPair: *pair, User: user}
		return nil
	})
	if err != nil {
		if errors.Is(err, apperr.ErrUnauthorized) {
			s.audit.LogEvent(ctx, failedID, auditdomain.ActionLoginFailure, auditdomain.ResourceAuthentication, username)
		}
		return nil, err
	}
	s.logger.Info("session created", zap.String("session_id", sess.ID), zap.String("user_id", sess.UserID))
	s.audit.LogEvent(ctx, sess.UserID, auditdomain.ActionLoginSuccess, auditdomain.ResourceAuthentication, sess.ID)
	s.publish(ctx, events.SessionCreated, sess, map[string]string{"ip": ip})
	return result, nil
}

// Refresh rotates the session's jti pair and returns new tokens. The session is loaded by the
// token's session id and locked. A superseded refresh token issued before the session's last
// rotation is treated as stolen: the call fails Unauthorized and the session is revoked afterwards
// in its own unit of work. A superseded token issued within the clock tolerance of the rotation
// only fails Unauthorized.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.VerifyRefresh(security.StripBearer(refreshToken))
	if err != nil {
		return nil, tokenError(err)
	}
	var (
		pair  *TokenPair
		sess  *sessiondomain.Session
		reuse bool
	)
	err = s.tx.Execute(ctx, func(ctx context.Context) error {
		var err error
		sess, err = s.sessions.GetByIDForUpdate(ctx, claims.SessionID)
		if err != nil {
			return err
		}
		if sess == nil {
			s.logger.Error("no session for valid refresh token",
				zap.String("session_id", claims.SessionID), zap.String("jti", claims.JTI), zap.String("user_id", claims.UserID))
			return apperr.NotFound("session")
		}
		now := s.clock()
		if !sess.IsActive(now, s.tolerance) {
			return apperr.Unauthorized("session inactive")
		}
		if sess.IssuedBeforeLastRefresh(claims.IssuedAt, s.tolerance) {
			reuse = true
			return apperr.Unauthorized("refresh token reuse detected")
		}
		if claims.JTI != sess.RefreshTokenJTI {
			return apperr.Unauthorized("refresh token superseded")
		}
		if claims.UserID != sess.UserID || claims.ExpiresAt.Unix() > sess.ExpireAt.Unix()+seconds(s.tolerance) {
			return apperr.TokenVerify(errors.New("refresh token does not match session"))
		}
		rotated := *sess
		rotated.LastRefreshAt = now
		rotated.ExpireAt = now.Add(s.refreshTTL)
		p, err := s.bindTokens(&rotated, now)
		if err != nil {
			return err
		}
		if err := s.sessions.Rotate(ctx, &rotated); err != nil {
			return err
		}
		*sess = rotated
		pair = p
		return nil
	})
	if reuse {
		s.revokeReused(ctx, sess)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("session refreshed", zap.String("session_id", sess.ID))
	s.publish(ctx, events.SessionRefreshed, sess, nil)
	return pair, nil
}

// VerifyAccessToken resolves an access token, with or without the "Bearer " prefix, to its
// active session.
func (s *AuthService) VerifyAccessToken(ctx context.Context, accessToken string) (*sessiondomain.Session, error) {
	claims, err := s.tokens.VerifyAccess(security.StripBearer(accessToken))
	if err != nil {
		return nil, tokenError(err)
	}
	sess, err := s.sessions.GetByAccessJTI(ctx, claims.JTI)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		s.logger.Error("no session for valid access token", zap.String("jti", claims.JTI), zap.String("user_id", claims.UserID))
		return nil, apperr.NotFound("session")
	}
	if !sess.IsActive(s.clock(), s.tolerance) {
		return nil, apperr.Unauthorized("session inactive")
	}
	if sess.UserID != claims.UserID {
		return nil, apperr.TokenVerify(errors.New("access token does not match session"))
	}
	return sess, nil
}

// Authenticate verifies the access token and loads its user. Disabled users are rejected even
// while their session is still active.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*sessiondomain.Session, *userdomain.User, error) {
	sess, err := s.VerifyAccessToken(ctx, accessToken)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, nil, err
	}
	if !user.CanLogin() {
		return nil, nil, apperr.Unauthorized("account disabled")
	}
	return sess, user, nil
}

// Logout ends an active session.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	sess, err := s.terminate(ctx, sessionID, "logout", s.sessions.SetLoggedOut)
	if err != nil {
		return err
	}
	s.logger.Info("session logged out", zap.String("session_id", sess.ID))
	s.audit.LogEvent(ctx, sess.UserID, auditdomain.ActionLogout, auditdomain.ResourceSession, sess.ID)
	s.publish(ctx, events.SessionLoggedOut, sess, nil)
	return nil
}

// Revoke force-ends an active session.
func (s *AuthService) Revoke(ctx context.Context, sessionID string) error {
	sess, err := s.terminate(ctx, sessionID, "revoke", s.sessions.SetRevoked)
	if err != nil {
		return err
	}
	s.logger.Info("session revoked", zap.String("session_id", sess.ID))
	s.audit.LogEvent(ctx, sess.UserID, auditdomain.ActionSessionRevoke, auditdomain.ResourceSession, sess.ID)
	s.publish(ctx, events.SessionRevoked, sess, nil)
	return nil
}

// RevokeAllByUser revokes every active session of the user and returns how many were revoked.
// Sessions that are already inactive are skipped.
func (s *AuthService) RevokeAllByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	now := s.clock()
	err := s.tx.Execute(ctx, func(ctx context.Context) error {
		var err error
		n, err = s.sessions.RevokeAllActiveByUser(ctx, userID, now, sessiondomain.ActiveCutoff(now, s.tolerance))
		return err
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("sessions revoked", zap.String("user_id", userID), zap.Int64("count", n))
	count := strconv.FormatInt(n, 10)
	s.audit.LogEvent(ctx, userID, auditdomain.ActionRevokeAll, auditdomain.ResourceSession, count)
	if n > 0 {
		ev := events.New(events.SessionRevoked, userID, userID, now, map[string]string{"scope": "user", "count": count})
		if err := s.events.Publish(ctx, ev); err != nil {
			s.logger.Warn("session event publish failed", zap.String("type", ev.Type), zap.Error(err))
		}
	}
	return n, nil
}

// ListActiveByUser returns the user's active sessions.
func (s *AuthService) ListActiveByUser(ctx context.Context, userID string) ([]*sessiondomain.Session, error) {
	return s.sessions.ListActiveByUser(ctx, userID, sessiondomain.ActiveCutoff(s.clock(), s.tolerance))
}

// GetSession returns the session or ResourceNotFound("session").
func (s *AuthService) GetSession(ctx context.Context, sessionID string) (*sessiondomain.Session, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, apperr.NotFound("session")
	}
	return sess, nil
}

func (s *AuthService) terminate(ctx context.Context, sessionID, op string, set func(context.Context, string, time.Time) error) (*sessiondomain.Session, error) {
	var sess *sessiondomain.Session
	err := s.tx.Execute(ctx, func(ctx context.Context) error {
		var err error
		sess, err = s.sessions.GetByID(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess == nil {
			return apperr.NotFound("session")
		}
		now := s.clock()
		if !sess.IsActive(now, s.tolerance) {
			return apperr.InvalidState(op, "sessionInactive")
		}
		return set(ctx, sess.ID, now)
	})
	return sess, err
}

// revokeReused is best effort: the caller already gets Unauthorized whatever happens here.
func (s *AuthService) revokeReused(ctx context.Context, sess *sessiondomain.Session) {
	s.logger.Warn("refresh token reuse detected", zap.String("session_id", sess.ID), zap.String("user_id", sess.UserID))
	err := s.tx.Execute(uow.Detach(ctx), func(ctx context.Context) error {
		return s.sessions.SetRevoked(ctx, sess.ID, s.clock())
	})
	if err != nil {
		s.logger.Error("revoke after refresh token reuse failed", zap.String("session_id", sess.ID), zap.Error(err))
	}
	s.audit.LogEvent(ctx, sess.UserID, auditdomain.ActionRefreshReuse, auditdomain.ResourceSession, sess.ID)
	s.publish(ctx, events.SessionReuseDetected, sess, nil)
}

// bindTokens gives sess a fresh jti pair and signs tokens for it.
func (s *AuthService) bindTokens(sess *sessiondomain.Session, now time.Time) (*TokenPair, error) {
	accessJTI, err := security.NewJTI()
	if err != nil {
		return nil, err
	}
	refreshJTI, err := security.NewJTI()
	if err != nil {
		return nil, err
	}
	access, accessExp, err := s.tokens.IssueAccess(accessJTI, sess.UserID, now)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefresh(refreshJTI, sess.ID, sess.UserID, now, sess.ExpireAt)
	if err != nil {
		return nil, err
	}
	sess.AccessTokenJTI = accessJTI
	sess.RefreshTokenJTI = refreshJTI
	return &TokenPair{
		AccessToken:      security.BearerPrefix + access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: sess.ExpireAt,
		SessionID:        sess.ID,
	}, nil
}

func (s *AuthService) publish(ctx context.Context, typ string, sess *sessiondomain.Session, attrs map[string]string) {
	if err := s.events.Publish(ctx, events.New(typ, sess.ID, sess.UserID, s.clock(), attrs)); err != nil {
		s.logger.Warn("session event publish failed", zap.String("type", typ), zap.String("session_id", sess.ID), zap.Error(err))
	}
}

// clock returns now truncated to whole seconds, the precision of token timestamps.
func (s *AuthService) clock() time.Time {
	return s.now().UTC().Truncate(time.Second)
}

func tokenError(err error) error {
	if errors.Is(err, security.ErrTokenExpired) {
		return apperr.TokenExpired(err)
	}
	return apperr.TokenVerify(err)
}

func seconds(d time.Duration) int64 { return int64(d / time.Second) }
