package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kennarddh/asset-management-sub000/internal/apperr"
	assetdomain "github.com/kennarddh/asset-management-sub000/internal/asset/domain"
	"github.com/kennarddh/asset-management-sub000/internal/audit"
	auditdomain "github.com/kennarddh/asset-management-sub000/internal/audit/domain"
	"github.com/kennarddh/asset-management-sub000/internal/db/uow"
	"github.com/kennarddh/asset-management-sub000/internal/events"
	"github.com/kennarddh/asset-management-sub000/internal/logging"
	"github.com/kennarddh/asset-management-sub000/internal/order/domain"
	"github.com/kennarddh/asset-management-sub000/internal/order/repository"
	"github.com/kennarddh/asset-management-sub000/internal/platform/actor"
)

// OrderRepo is the order persistence the service needs.
type OrderRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, f repository.Filter) ([]*domain.Order, error)
	ListDue(ctx context.Context, status domain.Status, cutoff time.Time, limit int32) ([]string, error)
	Create(ctx context.Context, o *domain.Order) error
	Update(ctx context.Context, o *domain.Order) error
}

// AssetRepo is the asset lookup the service needs.
type AssetRepo interface {
	GetByID(ctx context.Context, id string) (*assetdomain.Asset, error)
}

// CreateInput is a new lending request.
type CreateInput struct {
	UserID      string
	AssetID     string
	Description string
	Quantity    int
	StartAt     time.Time
	FinishAt    time.Time
}

// Service runs the order state machine. Every mutating call is one unit of work that reads the
// order under a row lock, checks the status guard and writes the transition.
type Service struct {
	tx     uow.Transactor
	orders OrderRepo
	assets AssetRepo
	audit  audit.AuditLogger
	events events.Publisher
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithAudit records decisions through l.
func WithAudit(l audit.AuditLogger) Option { return func(s *Service) { s.audit = l } }

// WithPublisher publishes lifecycle events through p after each commit.
func WithPublisher(p events.Publisher) Option { return func(s *Service) { s.events = p } }

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.logger = logging.OrNop(l) } }

// NewService returns an order Service.
func NewService(tx uow.Transactor, orders OrderRepo, assets AssetRepo, opts ...Option) *Service {
	s := &Service{
		tx:     tx,
		orders: orders,
		assets: assets,
		audit:  audit.Nop{},
		events: events.Nop{},
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create places a lending request. The order starts Pending when the asset requires approval
// and Active otherwise.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Order, error) {
	now := s.now().UTC()
	o := &domain.Order{
		ID:          uuid.New().String(),
		Description: in.Description,
		Quantity:    in.Quantity,
		UserID:      in.UserID,
		AssetID:     in.AssetID,
		RequestedAt: now,
		UpdatedAt:   now,
		StartAt:     in.StartAt.UTC(),
		FinishAt:    in.FinishAt.UTC(),
	}
	if err := o.Validate(); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	err := s.tx.Execute(ctx, func(ctx context.Context) error {
		asset, err := s.assets.GetByID(ctx, o.AssetID)
		if err != nil {
			return err
		}
		if asset == nil {
			return apperr.NotFound("asset")
		}
		if o.Quantity > asset.Quantity {
			return apperr.InvalidState("create", "insufficientQuantity")
		}
		o.Status = domain.InitialStatus(asset.RequiresApproval)
		return s.orders.Create(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("order created", zap.String("order_id", o.ID), zap.String("status", string(o.Status)))
	s.audit.LogEvent(ctx, actor.ID(ctx), auditdomain.ActionOrderCreate, auditdomain.ResourceOrder, o.ID)
	s.publish(ctx, events.OrderCreated, o, map[string]string{"status": string(o.Status)})
	return o, nil
}

// Get returns the order or ResourceNotFound("order").
func (s *Service) Get(ctx context.Context, id string) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, apperr.NotFound("order")
	}
	return o, nil
}

// List returns orders matching f.
func (s *Service) List(ctx context.Context, f repository.Filter) ([]*domain.Order, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validation("unknown status " + string(f.Status))
	}
	return s.orders.List(ctx, f)
}

// Approve moves a Pending order to Approved and records reason.
func (s *Service) Approve(ctx context.Context, id, reason string) (*domain.Order, error) {
	return s.transition(ctx, domain.OpApprove, id, reason)
}

// Reject moves a Pending order to Rejected and records reason.
func (s *Service) Reject(ctx context.Context, id, reason string) (*domain.Order, error) {
	return s.transition(ctx, domain.OpReject, id, reason)
}

// Cancel moves a Pending, Approved or Rejected order to Cancelled.
func (s *Service) Cancel(ctx context.Context, id string) (*domain.Order, error) {
	return s.transition(ctx, domain.OpCancel, id, "")
}

// Return closes an Active order as Returned, or ReturnedLate when past its finish time.
// Overdue orders are always ReturnedLate.
func (s *Service) Return(ctx context.Context, id string) (*domain.Order, error) {
	return s.transition(ctx, domain.OpReturn, id, "")
}

// Activate moves an Approved order to Active once its start time has been reached.
func (s *Service) Activate(ctx context.Context, id string) (*domain.Order, error) {
	return s.transition(ctx, domain.OpActivate, id, "")
}

// MarkOverdue moves an Active order past its finish time to Overdue.
func (s *Service) MarkOverdue(ctx context.Context, id string) (*domain.Order, error) {
	return s.transition(ctx, domain.OpMarkOverdue, id, "")
}

// ListDue returns ids of orders whose scheduled boundary is at or before now.
func (s *Service) ListDue(ctx context.Context, status domain.Status, limit int32) ([]string, error) {
	now := s.now().UTC()
	cutoff := now
	if status == domain.StatusActive {
		// finishAt must be strictly before now, in whole seconds.
		cutoff = time.Unix(now.Unix()-1, 0).UTC()
	}
	return s.orders.ListDue(ctx, status, cutoff, limit)
}

func (s *Service) transition(ctx context.Context, op domain.Operation, id, reason string) (*domain.Order, error) {
	var out *domain.Order
	err := s.tx.Execute(ctx, func(ctx context.Context) error {
		current, err := s.orders.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return apperr.NotFound("order")
		}
		now := s.now()
		if !domain.CanApply(op, current.Status) {
			return apperr.InvalidState(string(op), domain.ReasonProcessed)
		}
		if !domain.Due(op, current, now) {
			return apperr.InvalidState(string(op), domain.ReasonNotDue)
		}
		next := *current
		domain.Apply(&next, op, now, reason)
		if err := s.orders.Update(ctx, &next); err != nil {
			return err
		}
		out = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("order transitioned",
		zap.String("order_id", out.ID), zap.String("op", string(op)), zap.String("status", string(out.Status)))
	if action, ok := auditActions[op]; ok {
		s.audit.LogEvent(ctx, actor.ID(ctx), action, auditdomain.ResourceOrder, out.ID)
	}
	s.publish(ctx, eventTypes[op], out, map[string]string{"status": string(out.Status)})
	return out, nil
}

func (s *Service) publish(ctx context.Context, typ string, o *domain.Order, attrs map[string]string) {
	if err := s.events.Publish(ctx, events.New(typ, o.ID, o.UserID, o.UpdatedAt, attrs)); err != nil {
		s.logger.Warn("order event publish failed", zap.String("type", typ), zap.String("order_id", o.ID), zap.Error(err))
	}
}

var auditActions = map[domain.Operation]string{
	domain.OpApprove: auditdomain.ActionOrderApprove,
	domain.OpReject:  auditdomain.ActionOrderReject,
	domain.OpCancel:  auditdomain.ActionOrderCancel,
	domain.OpReturn:  auditdomain.ActionOrderReturn,
}

var eventTypes = map[domain.Operation]string{
	domain.OpApprove:     events.OrderApproved,
	domain.OpReject:      events.OrderRejected,
	domain.OpCancel:      events.OrderCancelled,
	domain.OpReturn:      events.OrderReturned,
	domain.OpActivate:    events.OrderActivated,
	domain.OpMarkOverdue: events.OrderOverdue,
}
