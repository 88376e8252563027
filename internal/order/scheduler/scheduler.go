// Package scheduler applies the time-driven order transitions: Approved orders become Active
// once they start, and Active orders become Overdue once they pass their finish time.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/kennarddh/asset-management-sub000/internal/apperr"
	"github.com/kennarddh/asset-management-sub000/internal/logging"
	"github.com/kennarddh/asset-management-sub000/internal/order/domain"
)

// DefaultBatchSize bounds how many orders of each status one sweep handles.
const DefaultBatchSize = 100

// Orders is the part of the order service the scheduler drives.
type Orders interface {
	ListDue(ctx context.Context, status domain.Status, limit int32) ([]string, error)
	Activate(ctx context.Context, id string) (*domain.Order, error)
	MarkOverdue(ctx context.Context, id string) (*domain.Order, error)
}

// Result counts the transitions applied by one sweep.
type Result struct {
	Activated int
	Overdue   int
	Skipped   int
	Failed    int
}

// Recorder receives the outcome of every sweep Run performs.
type Recorder interface {
	SweepCompleted(activated, overdue, skipped, failed int)
}

// Scheduler sweeps due orders on an interval. Each transition is its own unit of work, so one
// failing order does not hold back the rest.
type Scheduler struct {
	orders    Orders
	interval  time.Duration
	batchSize int32
	logger    *zap.Logger
	recorder  Recorder
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRecorder reports sweep results to r.
func WithRecorder(r Recorder) Option { return func(s *Scheduler) { s.recorder = r } }

// New returns a Scheduler. A non-positive batchSize selects DefaultBatchSize. The interval is
// rounded down to whole seconds with a minimum of one second.
func New(orders Orders, interval time.Duration, batchSize int32, logger *zap.Logger, opts ...Option) *Scheduler {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	s := &Scheduler{orders: orders, interval: interval, batchSize: batchSize, logger: logging.OrNop(logger)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps immediately and then every interval until ctx is cancelled. A sweep that is still
// running when the next one is due causes that tick to be skipped. Run waits for an in-flight
// sweep before returning ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	s.runOnce(ctx)

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.logger})))
	c.Schedule(cron.Every(s.interval), cron.FuncJob(func() { s.runOnce(ctx) }))
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	res, err := s.Sweep(ctx)
	if err != nil && ctx.Err() == nil {
		s.logger.Error("order sweep failed", zap.Error(err))
	}
	if s.recorder != nil {
		s.recorder.SweepCompleted(res.Activated, res.Overdue, res.Skipped, res.Failed)
	}
	if res.Activated+res.Overdue+res.Failed > 0 {
		s.logger.Info("order sweep",
			zap.Int("activated", res.Activated),
			zap.Int("overdue", res.Overdue),
			zap.Int("skipped", res.Skipped),
			zap.Int("failed", res.Failed))
	}
}

// Sweep applies every due transition once. Orders that another writer moved on in the meantime
// are skipped. Pending orders past their start are left alone until someone decides them.
// The returned error joins listing and transition failures.
func (s *Scheduler) Sweep(ctx context.Context) (Result, error) {
	var res Result
	var errs []error

	activated, err := s.apply(ctx, domain.StatusApproved, s.orders.Activate, &res)
	res.Activated = activated
	errs = append(errs, err)

	overdue, err := s.apply(ctx, domain.StatusActive, s.orders.MarkOverdue, &res)
	res.Overdue = overdue
	errs = append(errs, err)

	return res, errors.Join(errs...)
}

func (s *Scheduler) apply(ctx context.Context, status domain.Status, fn func(context.Context, string) (*domain.Order, error), res *Result) (int, error) {
	ids, err := s.orders.ListDue(ctx, status, s.batchSize)
	if err != nil {
		return 0, err
	}
	var errs []error
	n := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		_, err := fn(ctx, id)
		switch {
		case err == nil:
			n++
		case errors.Is(err, apperr.ErrInvalidState), errors.Is(err, apperr.ErrNotFound):
			res.Skipped++
		default:
			res.Failed++
			s.logger.Warn("scheduled transition failed", zap.String("order_id", id), zap.String("from", string(status)), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return n, errors.Join(errs...)
}

// cronLogger routes cron's own messages to zap.
type cronLogger struct{ logger *zap.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
