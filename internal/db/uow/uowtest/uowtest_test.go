package uowtest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRowLocks_HeldUntilUnitEnds(t *testing.T) {
	tx := &Concurrent{}
	var locks RowLocks
	locked := make(chan struct{})
	release := make(chan struct{})
	firstDone := make(chan error, 1)

	go func() {
		firstDone <- tx.Execute(context.Background(), func(ctx context.Context) error {
			locks.Lock(ctx, "row-1")
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	acquired := make(chan struct{})
	go func() {
		_ = tx.Execute(context.Background(), func(ctx context.Context) error {
			locks.Lock(ctx, "row-1")
			close(acquired)
			return nil
		})
	}()

	select {
	case <-acquired:
		t.Fatal("second unit locked a row held by the first")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	if err := <-firstDone; err != nil {
		t.Fatalf("first unit: %v", err)
	}
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("row lock was not released when the first unit ended")
	}
}

func TestRowLocks_OtherRowsAndReentry(t *testing.T) {
	tx := &Concurrent{}
	var locks RowLocks
	ctx := context.Background()

	err := tx.Execute(ctx, func(ctx context.Context) error {
		locks.Lock(ctx, "row-1")
		locks.Lock(ctx, "row-1")
		return tx.Execute(ctx, func(ctx context.Context) error {
			locks.Lock(ctx, "row-1")
			done := make(chan struct{})
			go func() {
				_ = tx.Execute(context.Background(), func(ctx context.Context) error {
					locks.Lock(ctx, "row-2")
					return nil
				})
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-time.After(time.Second):
				return errors.New("row-2 blocked behind row-1")
			}
		})
	})
	if err != nil {
		t.Fatal(err)
	}

	// Outside a unit the lock is not kept.
	locks.Lock(ctx, "row-1")
	locks.Lock(ctx, "row-1")

	if executed, failed := tx.Counts(); executed != 2 || failed != 0 {
		t.Errorf("units executed=%d failed=%d, want 2 and 0", executed, failed)
	}
}

func TestConcurrent_UnitsOverlap(t *testing.T) {
	tx := &Concurrent{}
	const n = 4
	var (
		wg      sync.WaitGroup
		started sync.WaitGroup
	)
	started.Add(n)
	all := make(chan struct{})
	go func() {
		started.Wait()
		close(all)
	}()
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = tx.Execute(context.Background(), func(ctx context.Context) error {
				started.Done()
				<-all
				if i == 0 {
					return errors.New("boom")
				}
				return nil
			})
		}(i)
	}
	select {
	case <-all:
	case <-time.After(time.Second):
		t.Fatal("units did not run concurrently")
	}
	wg.Wait()
	if executed, failed := tx.Counts(); executed != n || failed != 1 {
		t.Errorf("units executed=%d failed=%d, want %d and 1", executed, failed, n)
	}
}

func TestSerial_RunsOneUnitAtATime(t *testing.T) {
	tx := &Serial{}
	var (
		mu      sync.Mutex
		running int
		peak    int
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = tx.Execute(context.Background(), func(ctx context.Context) error {
				mu.Lock()
				running++
				if running > peak {
					peak = running
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				running--
				mu.Unlock()
				return tx.Execute(ctx, func(context.Context) error { return nil })
			})
		}()
	}
	wg.Wait()
	if peak != 1 {
		t.Errorf("peak concurrent units = %d, want 1", peak)
	}
	if executed, _ := tx.Counts(); executed != 8 {
		t.Errorf("units executed = %d, want 8 (nested calls run inline)", executed)
	}
}
