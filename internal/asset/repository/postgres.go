package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/kennarddh/asset-management-sub000/internal/apperr"
	"github.com/kennarddh/asset-management-sub000/internal/asset/domain"
	"github.com/kennarddh/asset-management-sub000/internal/db/uow"
	"github.com/kennarddh/asset-management-sub000/internal/logging"
)

const assetColumns = `id, name, description, category_id, quantity, requires_approval, created_at, updated_at`

type PostgresRepository struct {
	db     uow.DB
	logger *zap.Logger
}

// NewPostgresRepository returns an asset repository that queries through db.
func NewPostgresRepository(db uow.DB, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, logger: logging.OrNop(logger)}
}

// GetByID returns the asset for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Asset, error) {
	row := r.db.Querier(ctx).QueryRow(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = $1`, id)
	return r.scanOne(row, "asset.get")
}

// GetByName returns the first asset named name, or nil. Used by the seeder to stay idempotent.
func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*domain.Asset, error) {
	row := r.db.Querier(ctx).QueryRow(ctx, `SELECT `+assetColumns+` FROM assets WHERE name = $1 LIMIT 1`, name)
	return r.scanOne(row, "asset.get_by_name")
}

// List returns all assets ordered by name.
func (r *PostgresRepository) List(ctx context.Context) ([]*domain.Asset, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, `SELECT `+assetColumns+` FROM assets ORDER BY name`)
	if err != nil {
		return nil, r.fail("asset.list", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Asset, error) {
		return scanAsset(row)
	})
	if err != nil {
		return nil, r.fail("asset.list", err)
	}
	return list, nil
}

// Create persists the asset. ID must be set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.Asset) error {
	_, err := r.db.Querier(ctx).Exec(ctx,
		`INSERT INTO assets (`+assetColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.Name, a.Description, a.CategoryID, a.Quantity, a.RequiresApproval, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return r.fail("asset.create", err)
	}
	return nil
}

func (r *PostgresRepository) scanOne(row pgx.Row, op string) (*domain.Asset, error) {
	a, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, r.fail(op, err)
	}
	return a, nil
}

func (r *PostgresRepository) fail(op string, err error) error {
	r.logger.Error("asset query failed", zap.String("op", op), zap.Error(err))
	return apperr.DataAccess(op, err)
}

func scanAsset(row pgx.Row) (*domain.Asset, error) {
	var a domain.Asset
	if err := row.Scan(&a.ID, &a.Name, &a.Description, &a.CategoryID, &a.Quantity, &a.RequiresApproval,
		&a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}
