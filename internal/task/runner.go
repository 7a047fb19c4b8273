// Package task runs best-effort background work off the caller's path.
package task

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultTimeout = 10 * time.Second

// FailureObserver is told about every task that returned an error or panicked.
type FailureObserver interface {
	TaskFailed(name string)
}

// Runner spawns detached tasks. A task's failure is logged and counted, and
// never reaches the code that spawned it.
type Runner struct {
	logger   *slog.Logger
	timeout  time.Duration
	observer FailureObserver
	wg       sync.WaitGroup
}

type Option func(*Runner)

func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithObserver(o FailureObserver) Option {
	return func(r *Runner) {
		r.observer = o
	}
}

func NewRunner(logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{logger: logger, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Go runs fn on its own goroutine and returns immediately. fn receives a
// context that keeps ctx's values but not its cancellation, bounded by the
// runner's timeout.
func (r *Runner) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	id := uuid.New().String()
	detached := context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		taskCtx, cancel := context.WithTimeout(detached, r.timeout)
		defer cancel()

		start := time.Now()
		err := r.run(taskCtx, fn)
		if err != nil {
			r.logger.Error("background task failed",
				"task", name, "task_id", id, "duration", time.Since(start), "error", err)
			if r.observer != nil {
				r.observer.TaskFailed(name)
			}
			return
		}
		r.logger.Debug("background task done", "task", name, "task_id", id, "duration", time.Since(start))
	}()
}

func (r *Runner) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v\n%s", p, debug.Stack())
		}
	}()
	return fn(ctx)
}

// Wait blocks until every spawned task has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown waits for in-flight tasks until ctx is done.
func (r *Runner) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for background tasks: %w", ctx.Err())
	}
}
