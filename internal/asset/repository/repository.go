package repository

import (
	"context"

	"github.com/kennarddh/asset-management-sub000/internal/asset/domain"
)

// Repository defines persistence for assets.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Asset, error)
	GetByName(ctx context.Context, name string) (*domain.Asset, error)
	List(ctx context.Context) ([]*domain.Asset, error)
	Create(ctx context.Context, a *domain.Asset) error
}
