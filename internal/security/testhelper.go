package security

import (
	"time"
)

// Test issuer and audience used by NewTestTokenProvider.
const (
	TestIssuer   = "test-issuer"
	TestAudience = "test-audience"
)

// NewTestTokenProvider returns a TokenProvider backed by a freshly generated P-256 key.
// For unit tests only. Callers must not use in production.
func NewTestTokenProvider(accessTTL time.Duration, opts ...TokenOption) (*TokenProvider, error) {
	key, err := GenerateECDSAKey()
	if err != nil {
		return nil, err
	}
	return NewTokenProvider(key, key.Public(), TestIssuer, TestAudience, accessTTL, opts...)
}
