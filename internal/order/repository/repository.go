package repository

import (
	"context"
	"time"

	"github.com/kennarddh/asset-management-sub000/internal/order/domain"
)

// Filter narrows List. Zero values mean no constraint; Limit 0 selects the default page size.
type Filter struct {
	UserID string
	Status domain.Status
	Limit  int32
	Offset int32
}

// Repository defines persistence for orders. Lookups return (nil, nil) when no row matches.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	// GetByIDForUpdate locks the row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, f Filter) ([]*domain.Order, error)
	// ListDue returns ids of orders in status whose boundary time is at or before cutoff:
	// startAt for Approved orders, finishAt for Active orders.
	ListDue(ctx context.Context, status domain.Status, cutoff time.Time, limit int32) ([]string, error)
	Create(ctx context.Context, o *domain.Order) error
	// Update writes status, reason and every lifecycle timestamp of o in one statement.
	Update(ctx context.Context, o *domain.Order) error
}
