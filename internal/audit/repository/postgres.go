package repository

import (
	"context"

	"github.com/kennarddh/asset-management-sub000/internal/apperr"
	"github.com/kennarddh/asset-management-sub000/internal/audit/domain"
	"github.com/kennarddh/asset-management-sub000/internal/db/uow"
)

type PostgresRepository struct {
	db uow.DB
}

// NewPostgresRepository returns an audit log repository that queries through db.
func NewPostgresRepository(db uow.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the audit log. The audit log must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	_, err := r.db.Querier(ctx).Exec(ctx,
		`INSERT INTO audit_logs (id, user_id, action, resource, ip, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.UserID, a.Action, a.Resource, a.IP, a.Metadata, a.CreatedAt)
	if err != nil {
		return apperr.DataAccess("audit.create", err)
	}
	return nil
}
