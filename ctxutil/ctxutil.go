// Copyright (c) 2023 BVK Chaitanya

package ctxutil

import (
	"context"
	"errors"
	"time"
)

// Sleep blocks the caller for given timeout duration. Returns early if the
// input context is canceled.
func Sleep(ctx context.Context, d time.Duration) {
	sctx, scancel := context.WithTimeout(ctx, d)
	<-sctx.Done()
	scancel()
}

// Retry runs the input function till it succeeds or till the input context is
// canceled. Returns nil if the input function is successful or last non-nil
// error from the function after the context has expired.
func Retry(ctx context.Context, interval time.Duration, f func() error) (err error) {
	for err = f(); err != nil && context.Cause(ctx) == nil; err = f() {
		Sleep(ctx, interval)
	}
	return
}

// RetryBackoff runs the input function at most `attempts` times till it
// succeeds. Wait interval between the attempts starts at `initial` and is
// doubled after every failure, but never exceeds `max`. Returns nil on the
// first successful attempt, otherwise, the last non-nil error from the input
// function or the context's cancellation cause. Errors wrapped with Permanent
// stop the retries immediately. Errors wrapped with RetryAfter replace the
// next wait interval, still capped by `max`.
func RetryBackoff(ctx context.Context, attempts int, initial, max time.Duration, f func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	wait, next := initial, initial
	for i := 0; i < attempts; i++ {
		if i > 0 {
			Sleep(ctx, next)
			if cause := context.Cause(ctx); cause != nil {
				return cause
			}
			wait = min(2*wait, max)
			next = wait
		}
		if err = f(); err == nil {
			return nil
		}
		var perr *permanentError
		if errors.As(err, &perr) {
			return perr.err
		}
		var aerr *retryAfterError
		if errors.As(err, &aerr) {
			next = min(aerr.after, max)
			err = aerr.err
		}
	}
	return err
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string {
	return p.err.Error()
}

func (p *permanentError) Unwrap() error {
	return p.err
}

// Permanent wraps an error to indicate that RetryBackoff must not retry it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type retryAfterError struct {
	err   error
	after time.Duration
}

func (r *retryAfterError) Error() string {
	return r.err.Error()
}

func (r *retryAfterError) Unwrap() error {
	return r.err
}

// RetryAfter wraps an error to ask RetryBackoff to wait for the given duration
// before the next attempt.
func RetryAfter(err error, d time.Duration) error {
	if err == nil || d <= 0 {
		return err
	}
	return &retryAfterError{err: err, after: d}
}
