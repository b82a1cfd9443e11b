// Package task provides a small future type for background work whose
// completion is observed through ordered continuations.
package task

import (
	"context"
	"errors"
	"sync"
)

// ErrCanceled marks a task that was deliberately not run or was abandoned.
// Listeners should treat it as a no-op rather than a failure.
var ErrCanceled = errors.New("task canceled")

// Task is the eventual result of a background operation.
type Task[T any] struct {
	done chan struct{}

	mu        sync.Mutex
	completed bool
	value     T
	err       error
	listeners []func(*Task[T])
}

func newTask[T any]() *Task[T] {
	return &Task[T]{done: make(chan struct{})}
}

// Run starts fn on a new goroutine and returns its task.
func Run[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Task[T] {
	t := newTask[T]()
	go func() {
		if err := ctx.Err(); err != nil {
			var zero T
			t.complete(zero, err)
			return
		}
		v, err := fn(ctx)
		t.complete(v, err)
	}()
	return t
}

// Completed returns a task that has already succeeded with v.
func Completed[T any](v T) *Task[T] {
	t := newTask[T]()
	t.complete(v, nil)
	return t
}

// Failed returns a task that has already failed with err.
func Failed[T any](err error) *Task[T] {
	t := newTask[T]()
	var zero T
	t.complete(zero, err)
	return t
}

// Canceled returns a task that has already been canceled.
func Canceled[T any]() *Task[T] {
	return Failed[T](ErrCanceled)
}

// Then runs fn after t succeeds and returns the combined task. A failed or
// canceled t propagates without calling fn.
func Then[T, U any](ctx context.Context, t *Task[T], fn func(ctx context.Context, v T) (U, error)) *Task[U] {
	next := newTask[U]()
	t.OnComplete(func(prev *Task[T]) {
		v, err := prev.Result()
		if err != nil {
			var zero U
			next.complete(zero, err)
			return
		}
		go func() {
			if err := ctx.Err(); err != nil {
				var zero U
				next.complete(zero, err)
				return
			}
			u, err := fn(ctx, v)
			next.complete(u, err)
		}()
	})
	return next
}

func (t *Task[T]) complete(v T, err error) {
	t.mu.Lock()
	if t.completed {
		t.mu.Unlock()
		return
	}
	t.completed = true
	t.value = v
	t.err = err
	listeners := t.listeners
	t.listeners = nil
	t.mu.Unlock()

	for _, fn := range listeners {
		fn(t)
	}
	close(t.done)
}

// OnComplete registers fn to run once t finishes. Listeners run in
// registration order on the completing goroutine; if t is already
// finished, fn runs immediately on the caller's goroutine.
func (t *Task[T]) OnComplete(fn func(*Task[T])) *Task[T] {
	t.mu.Lock()
	if !t.completed {
		t.listeners = append(t.listeners, fn)
		t.mu.Unlock()
		return t
	}
	t.mu.Unlock()
	fn(t)
	return t
}

// Done is closed once the task finishes and its listeners have run.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Result returns the value and error. It must only be called after Done.
func (t *Task[T]) Result() (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value, t.err
}

// Await blocks until the task finishes or ctx is done.
func (t *Task[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.Result()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// IsComplete reports whether the task has finished.
func (t *Task[T]) IsComplete() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}

// IsSuccessful reports whether the task finished without error.
func (t *Task[T]) IsSuccessful() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed && t.err == nil
}

// IsCanceled reports whether the task finished by cancellation.
func (t *Task[T]) IsCanceled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed && IsCanceled(t.err)
}

// IsCanceled reports whether err is a cancellation rather than a failure.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)
}
