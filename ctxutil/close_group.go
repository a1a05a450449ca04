// Copyright (c) 2023 BVK Chaitanya

package ctxutil

import (
	"context"
	"log/slog"
	"os"
	"runtime/debug"
	"sync"
)

// CloseGroup owns a set of background goroutines that share a single context.
// Close cancels the shared context and waits for all goroutines to return.
type CloseGroup struct {
	closeCtx  context.Context
	causeFunc context.CancelCauseFunc

	wg sync.WaitGroup

	once sync.Once
}

func (cg *CloseGroup) init() {
	cg.closeCtx, cg.causeFunc = context.WithCancelCause(context.Background())
}

func (cg *CloseGroup) Close() {
	cg.once.Do(cg.init)
	cg.causeFunc(os.ErrClosed)
	cg.wg.Wait()
}

func (cg *CloseGroup) Context() context.Context {
	cg.once.Do(cg.init)
	return cg.closeCtx
}

// Go runs the input function in a new goroutine with the close-group context.
// Panics are logged with the stack trace before they are re-raised.
func (cg *CloseGroup) Go(f func(ctx context.Context)) {
	cg.once.Do(cg.init)

	cg.wg.Add(1)
	go func() {
		defer cg.wg.Done()

		defer func() {
			if r := recover(); r != nil {
				slog.Error("CAUGHT PANIC", "panic", r)
				slog.Error(string(debug.Stack()))
				panic(r)
			}
		}()

		f(cg.closeCtx)
	}()
}
