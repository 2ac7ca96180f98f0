package worker

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned by Await when the task outlives its budget
var ErrTimeout = errors.New("task timed out")

// Future is the pending result of a task started with Go
type Future[T any] struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	value  T
	err    error
}

// Go starts fn in its own goroutine with a context that ends after timeout
// A non-positive timeout only inherits ctx's deadline.
func Go[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	if timeout > 0 {
		f.ctx, f.cancel = context.WithTimeoutCause(ctx, timeout, ErrTimeout)
	} else {
		f.ctx, f.cancel = context.WithCancel(ctx)
	}

	go func() {
		defer close(f.done)
		f.value, f.err = fn(f.ctx)
	}()

	return f
}

// Await blocks until the task finishes or its context ends
// A task that misses its deadline yields ErrTimeout even if fn ignores ctx.
func (f *Future[T]) Await() (T, error) {
	defer f.cancel()

	// A finished task wins over a context that ended at the same moment
	select {
	case <-f.done:
		return f.result()
	default:
	}

	select {
	case <-f.done:
		return f.result()
	case <-f.ctx.Done():
		var zero T
		return zero, context.Cause(f.ctx)
	}
}

// result reports the task outcome, attributing ctx errors to their cause
func (f *Future[T]) result() (T, error) {
	if f.err != nil && f.ctx.Err() != nil {
		return f.value, context.Cause(f.ctx)
	}
	return f.value, f.err
}

// Cancel abandons the task
func (f *Future[T]) Cancel() {
	f.cancel()
}

// Done is closed when the task function returns
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}
