package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, badly signed, or carries wrong claims.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned when a well-formed token is past its exp (beyond leeway).
	ErrTokenExpired = errors.New("token expired")
)

// BearerPrefix is prepended to access tokens handed to clients.
const BearerPrefix = "Bearer "

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// sessionClaims is the signed payload of both token kinds. Refresh tokens also name their session
// so a superseded token still resolves to it; everything else lives in the session row.
type sessionClaims struct {
	jwt.RegisteredClaims
	Type      string `json:"typ"`
	SessionID string `json:"sid,omitempty"`
}

// Claims is the verified content of a token.
type Claims struct {
	JTI       string
	SessionID string
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenProvider issues and verifies JWT access and refresh tokens using RS256 or ES256.
type TokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	method     jwt.SigningMethod
	issuer     string
	audience   string
	accessTTL  time.Duration
	leeway     time.Duration
	now        func() time.Time
}

// TokenOption customizes a TokenProvider.
type TokenOption func(*TokenProvider)

// WithLeeway sets the clock tolerance applied to exp/iat/nbf checks.
func WithLeeway(d time.Duration) TokenOption {
	return func(p *TokenProvider) { p.leeway = d }
}

// WithClock overrides the time source used for issuing and verifying.
func WithClock(now func() time.Time) TokenOption {
	return func(p *TokenProvider) { p.now = now }
}

// NewTokenProvider returns a TokenProvider that signs with privateKey (RSA → RS256, ECDSA → ES256)
// and verifies with publicKey. Issuer and audience are set on issue and required on verify.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, accessTTL time.Duration, opts ...TokenOption) (*TokenProvider, error) {
	if privateKey == nil || publicKey == nil {
		return nil, ErrInvalidKey
	}
	var method jwt.SigningMethod
	switch privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return nil, ErrInvalidKey
	}
	p := &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		method:     method,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		now:        time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// AccessTTL returns the configured access token lifetime.
func (p *TokenProvider) AccessTTL() time.Duration { return p.accessTTL }

// IssueAccess signs an access token for jti issued at issuedAt; it expires accessTTL later.
func (p *TokenProvider) IssueAccess(jti, userID string, issuedAt time.Time) (token string, expiresAt time.Time, err error) {
	expiresAt = issuedAt.Add(p.accessTTL)
	token, err = p.sign(jti, "", userID, tokenTypeAccess, issuedAt, expiresAt)
	return token, expiresAt, err
}

// IssueRefresh signs a refresh token for jti of session sessionID; expiresAt is the session
// expiry, embedded as exp.
func (p *TokenProvider) IssueRefresh(jti, sessionID, userID string, issuedAt, expiresAt time.Time) (string, error) {
	return p.sign(jti, sessionID, userID, tokenTypeRefresh, issuedAt, expiresAt)
}

func (p *TokenProvider) sign(jti, sessionID, userID, typ string, issuedAt, expiresAt time.Time) (string, error) {
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Type:      typ,
		SessionID: sessionID,
	}
	return jwt.NewWithClaims(p.method, claims).SignedString(p.privateKey)
}

// VerifyAccess checks signature, exp, iss, aud and type of an access token.
// Returns ErrTokenExpired or ErrInvalidToken on failure.
func (p *TokenProvider) VerifyAccess(token string) (*Claims, error) {
	return p.verify(token, tokenTypeAccess)
}

// VerifyRefresh checks signature, exp, iss, aud, type and session id of a refresh token.
// Returns ErrTokenExpired or ErrInvalidToken on failure.
func (p *TokenProvider) VerifyRefresh(token string) (*Claims, error) {
	return p.verify(token, tokenTypeRefresh)
}

func (p *TokenProvider) verify(tokenString, typ string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return p.publicKey, nil
	},
		jwt.WithValidMethods([]string{p.method.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(p.leeway),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if claims.Type != typ || claims.ID == "" || claims.IssuedAt == nil {
		return nil, ErrInvalidToken
	}
	if typ == tokenTypeRefresh && claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return &Claims{
		JTI:       claims.ID,
		SessionID: claims.SessionID,
		UserID:    claims.Subject,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// NewJTI returns a random 128-bit token identifier, hex-encoded.
func NewJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// StripBearer removes a case-insensitive "Bearer " prefix and surrounding whitespace.
func StripBearer(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= len(BearerPrefix) && strings.EqualFold(s[:len(BearerPrefix)], BearerPrefix) {
		return strings.TrimSpace(s[len(BearerPrefix):])
	}
	return s
}
