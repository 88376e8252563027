// Package uowtest provides in-memory Transactors and row locks for service tests.
package uowtest

import (
	"context"
	"sync"
)

type boundKey struct{}

// unit is the state of one outermost unit of work. Locks taken inside it are released when it
// ends, the way a database holds SELECT ... FOR UPDATE locks until commit or rollback.
type unit struct {
	mu      sync.Mutex
	held    map[rowKey]bool
	release []func()
}

func (u *unit) end() {
	u.mu.Lock()
	release := u.release
	u.release = nil
	u.mu.Unlock()
	for i := len(release) - 1; i >= 0; i-- {
		release[i]()
	}
}

func unitFrom(ctx context.Context) *unit {
	u, _ := ctx.Value(boundKey{}).(*unit)
	return u
}

type counter struct {
	mu       sync.Mutex
	executed int
	failed   int
}

// run executes fn as a unit of work: inline when ctx is already bound, otherwise in a new unit
// whose row locks are released once fn returns.
func (c *counter) run(ctx context.Context, fn func(ctx context.Context) error) error {
	if unitFrom(ctx) != nil {
		return fn(ctx)
	}
	u := &unit{held: make(map[rowKey]bool)}
	err := func() error {
		defer u.end()
		return fn(context.WithValue(ctx, boundKey{}, u))
	}()
	c.mu.Lock()
	c.executed++
	if err != nil {
		c.failed++
	}
	c.mu.Unlock()
	return err
}

// Counts returns how many outermost units of work ran and how many of them failed.
func (c *counter) Counts() (executed, failed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.executed, c.failed
}

// Serial runs units of work one at a time, standing in for the isolation a real database
// provides. Nested calls with a bound context run inline, like uow.Manager.
// It does not undo writes made by a failing callback.
type Serial struct {
	counter
	mu sync.Mutex
}

// Execute implements uow.Transactor.
func (s *Serial) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if unitFrom(ctx) != nil {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run(ctx, fn)
}

// Concurrent lets units of work overlap. Repositories serialize conflicting units themselves
// through RowLocks, so tests built on it exercise the row locking of the code under test.
// Like Serial, it does not undo writes made by a failing callback.
type Concurrent struct {
	counter
}

// Execute implements uow.Transactor.
func (c *Concurrent) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	return c.run(ctx, fn)
}

type rowKey struct {
	locks *RowLocks
	id    string
}

// RowLocks hands out per-row exclusive locks for in-memory repositories.
type RowLocks struct {
	mu   sync.Mutex
	rows map[string]*sync.Mutex
}

// Lock blocks until the row id is free and holds it until the unit of work bound to ctx ends.
// Locking a row the unit already holds is a no-op. Outside a unit the lock is released at once.
func (l *RowLocks) Lock(ctx context.Context, id string) {
	l.mu.Lock()
	if l.rows == nil {
		l.rows = make(map[string]*sync.Mutex)
	}
	m, ok := l.rows[id]
	if !ok {
		m = &sync.Mutex{}
		l.rows[id] = m
	}
	l.mu.Unlock()

	u := unitFrom(ctx)
	key := rowKey{locks: l, id: id}
	if u != nil {
		u.mu.Lock()
		held := u.held[key]
		u.mu.Unlock()
		if held {
			return
		}
	}
	m.Lock()
	if u == nil {
		m.Unlock()
		return
	}
	u.mu.Lock()
	u.held[key] = true
	u.release = append(u.release, func() {
		u.mu.Lock()
		delete(u.held, key)
		u.mu.Unlock()
		m.Unlock()
	})
	u.mu.Unlock()
}
