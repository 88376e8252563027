package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kennarddh/asset-management-sub000/internal/audit/domain"
	auditrepo "github.com/kennarddh/asset-management-sub000/internal/audit/repository"
	"github.com/kennarddh/asset-management-sub000/internal/db/uow"
	"github.com/kennarddh/asset-management-sub000/internal/logging"
)

// IPExtractor returns the client IP recorded on the request context.
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event. Used by the auth and order services.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID, action, resource, metadata string)
}

// Logger implements AuditLogger using the audit repository and an optional IP extractor.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
	logger      *zap.Logger
	now         func() time.Time
}

// NewLogger returns an AuditLogger that persists to repo and uses ipExtractor for client IP.
// ipExtractor may be nil; then IP is recorded as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor, logger *zap.Logger) *Logger {
	return &Logger{repo: repo, ipExtractor: ipExtractor, logger: logging.OrNop(logger), now: time.Now}
}

// LogEvent writes one audit log entry. The write does not join a transaction bound to ctx, so
// an audit row survives the rollback of the operation it describes.
func (l *Logger) LogEvent(ctx context.Context, userID, action, resource, metadata string) {
	if l == nil || l.repo == nil {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		if v := l.ipExtractor(ctx); v != "" {
			ip = v
		}
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: l.now().UTC(),
	}
	if err := l.repo.Create(uow.Detach(ctx), entry); err != nil {
		l.logger.Warn("audit: failed to log event",
			zap.String("action", action), zap.String("resource", resource), zap.Error(err))
	}
}

// Nop discards audit events.
type Nop struct{}

func (Nop) LogEvent(context.Context, string, string, string, string) {}
