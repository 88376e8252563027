package uow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kennarddh/asset-management-sub000/internal/apperr"
)

// fakeTx records commit/rollback; every other pgx.Tx method panics via the nil embed.
type fakeTx struct {
	pgx.Tx
	mu         sync.Mutex
	committed  bool
	rolledBack bool
	commitErr  error
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.committed {
		return pgx.ErrTxClosed
	}
	t.rolledBack = true
	return nil
}

type fakePool struct {
	DBTX
	mu       sync.Mutex
	begins   int
	lastOpts pgx.TxOptions
	beginErr error
	txs      []*fakeTx
	next     *fakeTx
}

func (p *fakePool) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.beginErr != nil {
		return nil, p.beginErr
	}
	p.begins++
	p.lastOpts = opts
	tx := p.next
	if tx == nil {
		tx = &fakeTx{}
	}
	p.next = nil
	p.txs = append(p.txs, tx)
	return tx, nil
}

func (p *fakePool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func TestExecute_CommitsOnSuccess(t *testing.T) {
	pool := &fakePool{}
	m := NewManager(pool, pgx.Serializable, nil)

	var inside pgx.Tx
	err := m.Execute(context.Background(), func(ctx context.Context) error {
		tx, ok := TxFrom(ctx)
		if !ok {
			t.Fatal("no transaction bound inside Execute")
		}
		inside = tx
		return nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if pool.begins != 1 {
		t.Fatalf("begins = %d, want 1", pool.begins)
	}
	if pool.lastOpts.IsoLevel != pgx.Serializable {
		t.Errorf("IsoLevel = %q, want serializable", pool.lastOpts.IsoLevel)
	}
	tx := pool.txs[0]
	if inside != pgx.Tx(tx) {
		t.Error("callback saw a different transaction than the one begun")
	}
	if !tx.committed || tx.rolledBack {
		t.Errorf("committed=%v rolledBack=%v, want committed only", tx.committed, tx.rolledBack)
	}
}

func TestExecute_RollsBackAndPropagatesError(t *testing.T) {
	pool := &fakePool{}
	m := NewManager(pool, pgx.ReadCommitted, nil)
	want := apperr.InvalidState("approve", "processed")

	err := m.Execute(context.Background(), func(ctx context.Context) error {
		return want
	})
	if err != want {
		t.Fatalf("Execute error = %v, want the callback's error unchanged", err)
	}
	tx := pool.txs[0]
	if tx.committed || !tx.rolledBack {
		t.Errorf("committed=%v rolledBack=%v, want rollback only", tx.committed, tx.rolledBack)
	}
}

func TestExecute_NestedReusesTransaction(t *testing.T) {
	pool := &fakePool{}
	m := NewManager(pool, pgx.ReadCommitted, nil)

	err := m.Execute(context.Background(), func(outer context.Context) error {
		outerTx, _ := TxFrom(outer)
		return m.Execute(outer, func(inner context.Context) error {
			innerTx, _ := TxFrom(inner)
			if innerTx != outerTx {
				t.Error("nested Execute bound a different transaction")
			}
			if m.Querier(inner) != DBTX(outerTx) {
				t.Error("Querier inside nested Execute should return the outer transaction")
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if pool.begins != 1 {
		t.Errorf("begins = %d, want 1 (nested call must not open a transaction)", pool.begins)
	}
}

func TestExecute_NestedErrorRollsBackOuter(t *testing.T) {
	pool := &fakePool{}
	m := NewManager(pool, pgx.ReadCommitted, nil)
	boom := errors.New("boom")

	err := m.Execute(context.Background(), func(ctx context.Context) error {
		return m.Execute(ctx, func(ctx context.Context) error { return boom })
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Execute error = %v, want boom", err)
	}
	if tx := pool.txs[0]; !tx.rolledBack || tx.committed {
		t.Errorf("outer transaction committed=%v rolledBack=%v", tx.committed, tx.rolledBack)
	}
}

func TestExecute_BindingClearedAfterReturn(t *testing.T) {
	pool := &fakePool{}
	m := NewManager(pool, pgx.ReadCommitted, nil)
	ctx := context.Background()

	_ = m.Execute(ctx, func(ctx context.Context) error { return nil })
	_ = m.Execute(ctx, func(ctx context.Context) error { return errors.New("x") })

	if _, ok := TxFrom(ctx); ok {
		t.Error("caller context must not carry a transaction after Execute returns")
	}
	if m.Querier(ctx) != DBTX(pool) {
		t.Error("Querier outside Execute should return the pool")
	}
	if pool.begins != 2 {
		t.Errorf("begins = %d, want 2 (sequential calls each open their own)", pool.begins)
	}
}

func TestDetach_DropsBinding(t *testing.T) {
	pool := &fakePool{}
	m := NewManager(pool, pgx.ReadCommitted, nil)

	err := m.Execute(context.Background(), func(ctx context.Context) error {
		detached := Detach(ctx)
		if _, ok := TxFrom(detached); ok {
			t.Error("detached context still carries the transaction")
		}
		if m.Querier(detached) != DBTX(pool) {
			t.Error("Querier on a detached context should return the pool")
		}
		if _, ok := TxFrom(ctx); !ok {
			t.Error("Detach must not affect the original context")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	bg := context.Background()
	if Detach(bg) != bg {
		t.Error("Detach on an unbound context should return it unchanged")
	}
}

func TestExecute_PanicRollsBackAndRepanics(t *testing.T) {
	pool := &fakePool{}
	m := NewManager(pool, pgx.ReadCommitted, nil)

	defer func() {
		if r := recover(); r != "kaboom" {
			t.Fatalf("recovered %v, want kaboom", r)
		}
		if tx := pool.txs[0]; !tx.rolledBack {
			t.Error("panic should roll back the transaction")
		}
	}()
	_ = m.Execute(context.Background(), func(ctx context.Context) error {
		panic("kaboom")
	})
}

func TestExecute_BeginFailure(t *testing.T) {
	pool := &fakePool{beginErr: errors.New("pool exhausted")}
	m := NewManager(pool, pgx.ReadCommitted, nil)
	called := false

	err := m.Execute(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, apperr.ErrDataAccess) {
		t.Fatalf("Execute error = %v, want DataAccess", err)
	}
	if called {
		t.Error("callback must not run when begin fails")
	}
}

func TestExecute_CommitFailure(t *testing.T) {
	commitErr := errors.New("serialization failure")
	pool := &fakePool{next: &fakeTx{commitErr: commitErr}}
	m := NewManager(pool, pgx.Serializable, nil)

	err := m.Execute(context.Background(), func(ctx context.Context) error { return nil })
	if !errors.Is(err, apperr.ErrDataAccess) || !errors.Is(err, commitErr) {
		t.Fatalf("Execute error = %v, want DataAccess wrapping the commit error", err)
	}
}

func TestExecute_ConcurrentChainsGetSeparateTransactions(t *testing.T) {
	pool := &fakePool{}
	m := NewManager(pool, pgx.ReadCommitted, nil)

	var wg sync.WaitGroup
	seen := make(chan pgx.Tx, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Execute(context.Background(), func(ctx context.Context) error {
				tx, _ := TxFrom(ctx)
				seen <- tx
				return nil
			})
		}()
	}
	wg.Wait()
	close(seen)

	distinct := map[pgx.Tx]bool{}
	for tx := range seen {
		distinct[tx] = true
	}
	if len(distinct) != 8 {
		t.Errorf("distinct transactions = %d, want 8", len(distinct))
	}
}

func TestParseIsolation(t *testing.T) {
	testCases := []struct {
		in      string
		want    pgx.TxIsoLevel
		wantErr bool
	}{
		{"", pgx.ReadCommitted, false},
		{"read_committed", pgx.ReadCommitted, false},
		{"repeatable_read", pgx.RepeatableRead, false},
		{"serializable", pgx.Serializable, false},
		{"snapshot", "", true},
	}
	for _, tc := range testCases {
		got, err := ParseIsolation(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseIsolation(%q) error = %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ParseIsolation(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
