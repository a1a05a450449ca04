// Copyright (c) 2023 BVK Chaitanya

package ctxutil

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func TestCloseGroup(t *testing.T) {
	var cg CloseGroup

	var done atomic.Int32
	for i := 0; i < 100; i++ {
		cg.Go(func(ctx context.Context) {
			<-ctx.Done()
			done.Add(1)
		})
	}

	cg.Close()
	if v := done.Load(); v != 100 {
		t.Fatalf("want 100 goroutines to finish, got %d", v)
	}
	if err := context.Cause(cg.Context()); !errors.Is(err, os.ErrClosed) {
		t.Fatalf("want os.ErrClosed as the cause, got %v", err)
	}
}

func TestRetryBackoff(t *testing.T) {
	ctx := context.Background()

	var calls int
	failing := errors.New("failing")
	err := RetryBackoff(ctx, 3, time.Millisecond, 2*time.Millisecond, func() error {
		calls++
		return failing
	})
	if !errors.Is(err, failing) {
		t.Fatalf("want last error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("want 3 attempts, got %d", calls)
	}

	calls = 0
	err = RetryBackoff(ctx, 5, time.Millisecond, time.Millisecond, func() error {
		calls++
		if calls < 2 {
			return failing
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Fatalf("want 2 attempts, got %d", calls)
	}
}

func TestRetryBackoffCanceled(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(os.ErrClosed)

	var calls int
	err := RetryBackoff(ctx, 3, time.Second, time.Second, func() error {
		calls++
		return errors.New("failing")
	})
	if !errors.Is(err, os.ErrClosed) {
		t.Fatalf("want cancellation cause, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("want a single attempt, got %d", calls)
	}
}

func TestRetryBackoffPermanent(t *testing.T) {
	ctx := context.Background()

	var calls int
	err := RetryBackoff(ctx, 3, time.Millisecond, time.Millisecond, func() error {
		calls++
		return Permanent(os.ErrPermission)
	})
	if !errors.Is(err, os.ErrPermission) {
		t.Fatalf("want permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("want a single attempt, got %d", calls)
	}
}

func TestRetryBackoffRetryAfter(t *testing.T) {
	ctx := context.Background()

	var calls int
	start := time.Now()
	err := RetryBackoff(ctx, 2, time.Millisecond, 50*time.Millisecond, func() error {
		calls++
		if calls == 1 {
			return RetryAfter(os.ErrDeadlineExceeded, time.Hour)
		}
		return os.ErrPermission
	})
	if !errors.Is(err, os.ErrPermission) {
		t.Fatalf("want last error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("want 2 attempts, got %d", calls)
	}
	// Wait is capped by the max interval.
	if d := time.Since(start); d < 50*time.Millisecond || d > 5*time.Second {
		t.Fatalf("want retry-after wait capped at 50ms, took %s", d)
	}

	if err := RetryAfter(nil, time.Second); err != nil {
		t.Fatalf("want nil for nil error, got %v", err)
	}
}
