// Package uow binds one database transaction to a logical call chain.
//
// The binding travels in the context.Context handed to the Execute callback, so nested service
// and repository calls made with that context share the transaction without it appearing in
// their signatures. Code outside the callback never sees it.
package uow

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/kennarddh/asset-management-sub000/internal/apperr"
	"github.com/kennarddh/asset-management-sub000/internal/logging"
)

// DBTX is the query surface shared by pgx transactions and pools.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool begins transactions and serves queries issued outside of one. *pgxpool.Pool satisfies it.
type Pool interface {
	DBTX
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// Transactor runs fn inside a unit of work. Services depend on this rather than on *Manager.
type Transactor interface {
	Execute(ctx context.Context, fn func(ctx context.Context) error) error
}

// DB resolves the query surface for a context. *Manager implements it; repositories hold one.
type DB interface {
	Querier(ctx context.Context) DBTX
}

type txKey struct{}

// Manager opens, binds, commits and rolls back transactions.
type Manager struct {
	pool   Pool
	opts   pgx.TxOptions
	logger *zap.Logger
}

// NewManager returns a Manager that begins transactions on pool at the given isolation level.
func NewManager(pool Pool, iso pgx.TxIsoLevel, logger *zap.Logger) *Manager {
	return &Manager{
		pool:   pool,
		opts:   pgx.TxOptions{IsoLevel: iso},
		logger: logging.OrNop(logger),
	}
}

// ParseIsolation maps a config value to a pgx isolation level.
func ParseIsolation(s string) (pgx.TxIsoLevel, error) {
	switch s {
	case "", "read_committed":
		return pgx.ReadCommitted, nil
	case "repeatable_read":
		return pgx.RepeatableRead, nil
	case "serializable":
		return pgx.Serializable, nil
	}
	return "", fmt.Errorf("uow: unknown isolation level %q", s)
}

// Execute runs fn with a context carrying a transaction.
//
// If ctx already carries one, fn runs on it and nothing is begun or committed here; the outermost
// Execute owns the commit. Otherwise a transaction is begun, committed when fn returns nil and
// rolled back when fn returns an error or panics. fn's error is returned as is.
func (m *Manager) Execute(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := TxFrom(ctx); ok {
		return fn(ctx)
	}

	tx, err := m.pool.BeginTx(ctx, m.opts)
	if err != nil {
		m.logger.Error("uow: begin transaction failed", zap.Error(err))
		return apperr.DataAccess("begin", err)
	}
	txCtx := context.WithValue(ctx, txKey{}, tx)

	defer func() {
		if p := recover(); p != nil {
			m.rollback(ctx, tx)
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		m.rollback(ctx, tx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		m.logger.Error("uow: commit failed", zap.Error(err))
		return apperr.DataAccess("commit", err)
	}
	return nil
}

// Querier returns the transaction bound to ctx, or the pool when there is none.
func (m *Manager) Querier(ctx context.Context) DBTX {
	if tx, ok := TxFrom(ctx); ok {
		return tx
	}
	return m.pool
}

func (m *Manager) rollback(ctx context.Context, tx pgx.Tx) {
	// The request context may already be cancelled; the rollback must still reach the server.
	if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		m.logger.Warn("uow: rollback failed", zap.Error(err))
	}
}

// Detach returns ctx without its transaction binding. Work done with it, such as audit writes,
// runs outside the unit of work and survives its rollback.
func Detach(ctx context.Context) context.Context {
	if _, ok := TxFrom(ctx); !ok {
		return ctx
	}
	return context.WithValue(ctx, txKey{}, nil)
}

// TxFrom returns the transaction bound to ctx, if any.
func TxFrom(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok && tx != nil
}
