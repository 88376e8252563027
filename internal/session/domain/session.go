package domain

import "time"

// Session is one authenticated login. Its access and refresh tokens reference it by jti only.
type Session struct {
	ID              string
	UserID          string
	AccessTokenJTI  string
	RefreshTokenJTI string
	IPAddress       string
	CreatedAt       time.Time
	LastRefreshAt   time.Time
	ExpireAt        time.Time
	LoggedOutAt     *time.Time // nil until logout
	RevokedAt       *time.Time // nil until revoked
}

// IsActive reports whether the session is neither revoked nor logged out and has not expired
// more than tolerance ago. Comparison is in whole seconds and inclusive at the boundary.
func (s *Session) IsActive(now time.Time, tolerance time.Duration) bool {
	if s == nil || s.RevokedAt != nil || s.LoggedOutAt != nil {
		return false
	}
	return s.ExpireAt.Unix() >= ActiveCutoff(now, tolerance).Unix()
}

// ActiveCutoff is the earliest expiry, in whole seconds, an active session may have at now.
// Stores filter with expire_at >= ActiveCutoff(now, tolerance).
func ActiveCutoff(now time.Time, tolerance time.Duration) time.Time {
	return time.Unix(now.Unix()-int64(tolerance/time.Second), 0).UTC()
}

// IssuedBeforeLastRefresh reports whether a token issued at iat predates the session's last
// rotation by more than tolerance, meaning it belongs to a superseded jti pair.
func (s *Session) IssuedBeforeLastRefresh(iat time.Time, tolerance time.Duration) bool {
	return iat.Unix() < s.LastRefreshAt.Unix()-int64(tolerance/time.Second)
}
