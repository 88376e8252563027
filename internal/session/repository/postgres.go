package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/kennarddh/asset-management-sub000/internal/apperr"
	"github.com/kennarddh/asset-management-sub000/internal/db/uow"
	"github.com/kennarddh/asset-management-sub000/internal/logging"
	"github.com/kennarddh/asset-management-sub000/internal/session/domain"
)

const sessionColumns = `id, user_id, access_token_jti, refresh_token_jti, ip_address, created_at,
	last_refresh_at, expire_at, logged_out_at, revoked_at`

const activeFilter = `revoked_at IS NULL AND logged_out_at IS NULL AND expire_at >= $2`

type PostgresRepository struct {
	db     uow.DB
	logger *zap.Logger
}

// NewPostgresRepository returns a session repository that queries through db.
func NewPostgresRepository(db uow.DB, logger *zap.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, logger: logging.OrNop(logger)}
}

// GetByID returns the session for id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.Querier(ctx).QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	return r.scanOne(row, "session.get")
}

// GetByAccessJTI returns the session whose current access token has jti, or nil.
func (r *PostgresRepository) GetByAccessJTI(ctx context.Context, jti string) (*domain.Session, error) {
	row := r.db.Querier(ctx).QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE access_token_jti = $1`, jti)
	return r.scanOne(row, "session.get_by_access_jti")
}

// GetByIDForUpdate returns the session for id, or nil. The row stays locked until the
// surrounding transaction ends so concurrent refreshes of one session serialize.
func (r *PostgresRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.Querier(ctx).QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1 FOR UPDATE`, id)
	return r.scanOne(row, "session.get_for_update")
}

// ListActiveByUser returns the user's active sessions, newest first.
func (r *PostgresRepository) ListActiveByUser(ctx context.Context, userID string, activeSince time.Time) ([]*domain.Session, error) {
	rows, err := r.db.Querier(ctx).Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = $1 AND `+activeFilter+` ORDER BY created_at DESC`,
		userID, activeSince)
	if err != nil {
		return nil, r.fail("session.list_active", err)
	}
	defer rows.Close()
	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, r.fail("session.list_active", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, r.fail("session.list_active", err)
	}
	return out, nil
}

// Create persists a new session. ID and both jtis must be set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.Querier(ctx).Exec(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.UserID, s.AccessTokenJTI, s.RefreshTokenJTI, s.IPAddress, s.CreatedAt,
		s.LastRefreshAt, s.ExpireAt, s.LoggedOutAt, s.RevokedAt)
	if err != nil {
		return r.fail("session.create", err)
	}
	return nil
}

// Rotate replaces the jti pair and refresh bookkeeping of an existing session.
func (r *PostgresRepository) Rotate(ctx context.Context, s *domain.Session) error {
	_, err := r.db.Querier(ctx).Exec(ctx,
		`UPDATE sessions SET access_token_jti = $2, refresh_token_jti = $3, last_refresh_at = $4, expire_at = $5
		WHERE id = $1`,
		s.ID, s.AccessTokenJTI, s.RefreshTokenJTI, s.LastRefreshAt, s.ExpireAt)
	if err != nil {
		return r.fail("session.rotate", err)
	}
	return nil
}

// SetLoggedOut records a logout.
func (r *PostgresRepository) SetLoggedOut(ctx context.Context, id string, at time.Time) error {
	if _, err := r.db.Querier(ctx).Exec(ctx, `UPDATE sessions SET logged_out_at = $2 WHERE id = $1`, id, at); err != nil {
		return r.fail("session.logout", err)
	}
	return nil
}

// SetRevoked records a revocation.
func (r *PostgresRepository) SetRevoked(ctx context.Context, id string, at time.Time) error {
	if _, err := r.db.Querier(ctx).Exec(ctx, `UPDATE sessions SET revoked_at = $2 WHERE id = $1`, id, at); err != nil {
		return r.fail("session.revoke", err)
	}
	return nil
}

// RevokeAllActiveByUser revokes all of the user's active sessions in one statement.
func (r *PostgresRepository) RevokeAllActiveByUser(ctx context.Context, userID string, at, activeSince time.Time) (int64, error) {
	tag, err := r.db.Querier(ctx).Exec(ctx,
		`UPDATE sessions SET revoked_at = $3 WHERE user_id = $1 AND `+activeFilter, userID, activeSince, at)
	if err != nil {
		return 0, r.fail("session.revoke_all", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) scanOne(row pgx.Row, op string) (*domain.Session, error) {
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, r.fail(op, err)
	}
	return s, nil
}

func (r *PostgresRepository) fail(op string, err error) error {
	r.logger.Error("session query failed", zap.String("op", op), zap.Error(err))
	return apperr.DataAccess(op, err)
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var s domain.Session
	err := row.Scan(&s.ID, &s.UserID, &s.AccessTokenJTI, &s.RefreshTokenJTI, &s.IPAddress, &s.CreatedAt,
		&s.LastRefreshAt, &s.ExpireAt, &s.LoggedOutAt, &s.RevokedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
