package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/kennarddh/asset-management-sub000/internal/apperr"
	"github.com/kennarddh/asset-management-sub000/internal/db/uow"
	"github.com/kennarddh/asset-management-sub000/internal/logging"
	"github.com/kennarddh/asset-management-sub000/internal/order/domain"
)

const orderColumns = `id, description, reason, status, quantity, user_id, asset_id, requested_at, updated_at,
	start_at, finish_at, approved_at, rejected_at, returned_at, canceled_at`

const defaultPageSize = 50

type PostgresRepository struct {
	db     uow.DB
	logger *zap.Logger
}

// NewPostgresRepository returns an order repository that queries through db.
func NewPostgresRepository(db uow.DB, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, logger: logging.OrNop(logger)}
}

// GetByID returns the order for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	row := r.db.Querier(ctx).QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return r.scanOne(row, "order.get")
}

// GetByIDForUpdate is GetByID with a row lock, so a status guard and the write that follows it
// cannot interleave with another transaction's write to the same order.
func (r *PostgresRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	row := r.db.Querier(ctx).QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	return r.scanOne(row, "order.get_for_update")
}

// List returns orders matching f, newest request first.
func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]*domain.Order, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	rows, err := r.db.Querier(ctx).Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		WHERE ($1 = '' OR user_id = $1) AND ($2 = '' OR status = $2)
		ORDER BY requested_at DESC, id LIMIT $3 OFFSET $4`,
		f.UserID, string(f.Status), limit, f.Offset)
	if err != nil {
		return nil, r.fail("order.list", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Order, error) {
		return scanOrder(row)
	})
	if err != nil {
		return nil, r.fail("order.list", err)
	}
	return list, nil
}

// ListDue returns ids of orders due for a scheduled transition, oldest boundary first.
func (r *PostgresRepository) ListDue(ctx context.Context, status domain.Status, cutoff time.Time, limit int32) ([]string, error) {
	var column string
	switch status {
	case domain.StatusApproved:
		column = "start_at"
	case domain.StatusActive:
		column = "finish_at"
	default:
		return nil, fmt.Errorf("order: no schedule boundary for status %s", status)
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	rows, err := r.db.Querier(ctx).Query(ctx,
		`SELECT id FROM orders WHERE status = $1 AND `+column+` <= $2 ORDER BY `+column+` LIMIT $3`,
		string(status), cutoff, limit)
	if err != nil {
		return nil, r.fail("order.list_due", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, r.fail("order.list_due", err)
	}
	return ids, nil
}

// Create persists a new order. ID must be set.
func (r *PostgresRepository) Create(ctx context.Context, o *domain.Order) error {
	_, err := r.db.Querier(ctx).Exec(ctx,
		`INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		o.ID, o.Description, o.Reason, string(o.Status), o.Quantity, o.UserID, o.AssetID, o.RequestedAt, o.UpdatedAt,
		o.StartAt, o.FinishAt, o.ApprovedAt, o.RejectedAt, o.ReturnedAt, o.CanceledAt)
	if err != nil {
		return r.fail("order.create", err)
	}
	return nil
}

// Update persists a transition of an existing order.
func (r *PostgresRepository) Update(ctx context.Context, o *domain.Order) error {
	tag, err := r.db.Querier(ctx).Exec(ctx,
		`UPDATE orders SET status = $2, reason = $3, updated_at = $4, approved_at = $5, rejected_at = $6,
		returned_at = $7, canceled_at = $8 WHERE id = $1`,
		o.ID, string(o.Status), o.Reason, o.UpdatedAt, o.ApprovedAt, o.RejectedAt, o.ReturnedAt, o.CanceledAt)
	if err != nil {
		return r.fail("order.update", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("order")
	}
	return nil
}

func (r *PostgresRepository) scanOne(row pgx.Row, op string) (*domain.Order, error) {
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, r.fail(op, err)
	}
	return o, nil
}

func (r *PostgresRepository) fail(op string, err error) error {
	r.logger.Error("order query failed", zap.String("op", op), zap.Error(err))
	return apperr.DataAccess(op, err)
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o      domain.Order
		status string
	)
	err := row.Scan(&o.ID, &o.Description, &o.Reason, &status, &o.Quantity, &o.UserID, &o.AssetID,
		&o.RequestedAt, &o.UpdatedAt, &o.StartAt, &o.FinishAt, &o.ApprovedAt, &o.RejectedAt, &o.ReturnedAt, &o.CanceledAt)
	if err != nil {
		return nil, err
	}
	o.Status = domain.Status(status)
	return &o, nil
}
