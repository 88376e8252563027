package repository

import (
	"context"
	"time"

	"github.com/kennarddh/asset-management-sub000/internal/session/domain"
)

// Repository defines persistence for sessions. Lookups return (nil, nil) when no row matches.
// activeSince is domain.ActiveCutoff for the caller's clock.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	GetByAccessJTI(ctx context.Context, jti string) (*domain.Session, error)
	// GetByIDForUpdate locks the row for the rest of the transaction.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Session, error)
	ListActiveByUser(ctx context.Context, userID string, activeSince time.Time) ([]*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	// Rotate stores a new jti pair, lastRefreshAt and expireAt for the session.
	Rotate(ctx context.Context, s *domain.Session) error
	SetLoggedOut(ctx context.Context, id string, at time.Time) error
	SetRevoked(ctx context.Context, id string, at time.Time) error
	// RevokeAllActiveByUser revokes every active session of the user and returns how many.
	RevokeAllActiveByUser(ctx context.Context, userID string, at, activeSince time.Time) (int64, error)
}
