package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kennarddh/asset-management-sub000/internal/logging"
)

// publishTimeout bounds a single asynchronous publish.
const publishTimeout = 5 * time.Second

// Publisher sends events. Callers treat it as best effort: log and ignore errors.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// Nop discards every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, ...Event) error { return nil }

// Multi publishes to every non-nil publisher in order and joins their errors.
func Multi(ps ...Publisher) Publisher {
	out := make(multi, 0, len(ps))
	for _, p := range ps {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

type multi []Publisher

func (m multi) Publish(ctx context.Context, evs ...Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, evs...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Async hands events to an underlying Publisher on a goroutine so request paths never wait on
// the broker. Close waits for in-flight publishes.
type Async struct {
	next   Publisher
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewAsync wraps next. A nil next behaves like Nop.
func NewAsync(next Publisher, logger *zap.Logger) *Async {
	if next == nil {
		next = Nop{}
	}
	return &Async{next: next, logger: logging.OrNop(logger)}
}

// Publish starts the publish and returns immediately. The request context only contributes its
// values; cancellation of the request does not abort the write.
func (a *Async) Publish(ctx context.Context, evs ...Event) error {
	if len(evs) == 0 {
		return nil
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := a.next.Publish(pubCtx, evs...); err != nil {
			a.logger.Warn("events: async publish failed", zap.String("type", evs[0].Type), zap.Int("count", len(evs)), zap.Error(err))
		}
	}()
	return nil
}

// Close blocks until every started publish has finished.
func (a *Async) Close() {
	a.wg.Wait()
}
