package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/kennarddh/asset-management-sub000/internal/apperr"
	"github.com/kennarddh/asset-management-sub000/internal/db/uow"
	"github.com/kennarddh/asset-management-sub000/internal/logging"
	"github.com/kennarddh/asset-management-sub000/internal/user/domain"
)

const userColumns = `id, username, name, password_hash, role, status, created_at, updated_at`

type PostgresRepository struct {
	db     uow.DB
	logger *zap.Logger
}

// NewPostgresRepository returns a user repository that queries through db, joining any
// transaction bound to the call's context.
func NewPostgresRepository(db uow.DB, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, logger: logging.OrNop(logger)}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.Querier(ctx).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return r.scan(row, "user.get")
}

// GetByUsername returns the user with the given username, or nil if not found.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.db.Querier(ctx).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return r.scan(row, "user.get_by_username")
}

// Create persists the user. The user must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.Querier(ctx).Exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Username, u.Name, u.PasswordHash, string(u.Role), string(u.Status), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		r.logger.Error("create user failed", zap.String("username", u.Username), zap.Error(err))
		return apperr.DataAccess("user.create", err)
	}
	return nil
}

// Update overwrites the mutable fields of an existing user.
func (r *PostgresRepository) Update(ctx context.Context, u *domain.User) error {
	_, err := r.db.Querier(ctx).Exec(ctx,
		`UPDATE users SET name = $2, password_hash = $3, role = $4, status = $5, updated_at = $6 WHERE id = $1`,
		u.ID, u.Name, u.PasswordHash, string(u.Role), string(u.Status), u.UpdatedAt)
	if err != nil {
		r.logger.Error("update user failed", zap.String("user_id", u.ID), zap.Error(err))
		return apperr.DataAccess("user.update", err)
	}
	return nil
}

func (r *PostgresRepository) scan(row pgx.Row, op string) (*domain.User, error) {
	var (
		u            domain.User
		role, status string
	)
	err := row.Scan(&u.ID, &u.Username, &u.Name, &u.PasswordHash, &role, &status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("query user failed", zap.String("op", op), zap.Error(err))
		return nil, apperr.DataAccess(op, err)
	}
	u.Role = domain.Role(role)
	u.Status = domain.UserStatus(status)
	return &u, nil
}
