// Package tasks runs deferred work scheduled by the request path: durable
// counter increments, external-profile refreshes, and cache population all
// happen here, after the SVG response has been dispatched.
//
// Execution guarantees are deliberately weak: at-least-once, no ordering
// between tasks for the same key, no cancellation once scheduled.
// Correctness rests entirely on the durable store's atomic upserts, never
// on scheduling. Timeouts come from each task's derived context, not from
// the executor.
package tasks

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Executor schedules fire-and-forget tasks and tracks them so shutdown can
// drain in-flight work. Safe for concurrent use.
type Executor struct {
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewExecutor returns an Executor whose tasks each get a fresh context with
// the given timeout.
func NewExecutor(timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Executor{timeout: timeout}
}

// Submit schedules fn to run in the background. The task receives its own
// context, detached from the request that scheduled it; the client is no
// longer waiting. Panics are recovered and logged so one bad task cannot
// take the process down.
func (e *Executor) Submit(name string, fn func(ctx context.Context)) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Str("task", name).
					Msg("deferred task panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()
		fn(ctx)
	}()
}

// Shutdown blocks until every in-flight task finishes or ctx expires,
// returning ctx.Err() in the latter case.
func (e *Executor) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
