package async

import (
	"context"
	"sync"

	"github.com/mwantia/asyncvfs/data/errors"
)

type futureState int

const (
	statePending futureState = iota
	stateResolved
	stateRejected
)

// Future is the consumer side of a single-assignment result.
// Waiters attached before or after resolution are each notified exactly once,
// always through the scheduler queue.
type Future[T any] struct {
	s     *Scheduler
	token *CancellationToken

	// producerRejects is set by producers that poll the token and reject
	// on their own once Cancel was called.
	producerRejects bool

	mu        sync.Mutex
	state     futureState
	cancelled bool
	value     T
	err       error
	waiters   []func(T, error)
}

// Deferred is the producer side of a Future.
type Deferred[T any] struct {
	future *Future[T]
}

func NewDeferred[T any](ctx context.Context) *Deferred[T] {
	return &Deferred[T]{
		future: newFuture[T](mustScheduler(ctx)),
	}
}

func newFuture[T any](s *Scheduler) *Future[T] {
	return &Future[T]{
		s:     s,
		token: NewCancellationToken(),
	}
}

func (d *Deferred[T]) Future() *Future[T] {
	return d.future
}

// Token returns the cancellation token consumers set through Future.Cancel.
func (d *Deferred[T]) Token() *CancellationToken {
	return d.future.token
}

// Resolve completes the future with value. Completing a future twice panics;
// completing a future that was cancelled has no effect.
func (d *Deferred[T]) Resolve(value T) {
	if !d.future.complete(value, nil) && !d.future.wasCancelled() {
		panic("async: deferred completed twice")
	}
}

// Reject completes the future with err. Completing a future twice panics;
// completing a future that was cancelled has no effect.
func (d *Deferred[T]) Reject(err error) {
	if err == nil {
		panic("async: deferred rejected with nil error")
	}

	var zero T
	if !d.future.complete(zero, err) && !d.future.wasCancelled() {
		panic("async: deferred completed twice")
	}
}

// Resolved returns an already resolved future.
func Resolved[T any](ctx context.Context, value T) *Future[T] {
	d := NewDeferred[T](ctx)
	d.Resolve(value)
	return d.Future()
}

// Rejected returns an already rejected future.
func Rejected[T any](ctx context.Context, err error) *Future[T] {
	d := NewDeferred[T](ctx)
	d.Reject(err)
	return d.Future()
}

func (f *Future[T]) complete(value T, err error) bool {
	f.mu.Lock()
	if f.state != statePending {
		f.mu.Unlock()
		return false
	}

	f.value, f.err = value, err
	if err != nil {
		f.state = stateRejected
	} else {
		f.state = stateResolved
	}

	waiters := f.waiters
	f.waiters = nil
	f.mu.Unlock()

	for _, waiter := range waiters {
		f.dispatch(waiter, value, err)
	}
	return true
}

func (f *Future[T]) dispatch(waiter func(T, error), value T, err error) {
	f.s.Queue(func() {
		waiter(value, err)
	})
}

// Then attaches a waiter. Waiters run on the scheduler loop and must not block.
func (f *Future[T]) Then(waiter func(T, error)) {
	f.mu.Lock()
	if f.state == statePending {
		f.waiters = append(f.waiters, waiter)
		f.mu.Unlock()
		return
	}

	value, err := f.value, f.err
	f.mu.Unlock()

	f.dispatch(waiter, value, err)
}

// Await suspends the caller until the future completes or ctx ends.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	type result struct {
		value T
		err   error
	}

	wake := make(chan result, 1)
	f.Then(func(value T, err error) {
		wake <- result{value, err}
	})

	select {
	case r := <-wake:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, errors.Cancelled(ctx.Err(), "await")
	}
}

// Done reports whether the future reached a terminal state.
func (f *Future[T]) Done() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.state != statePending
}

// Result returns the outcome without waiting. ok is false while pending.
func (f *Future[T]) Result() (value T, err error, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.value, f.err, f.state != statePending
}

// Cancel sets the token and rejects a pending future with a cancelled error.
// Futures of worker pool submissions are rejected by the worker once the work
// returns. A completed future is left untouched.
func (f *Future[T]) Cancel() {
	f.token.Cancel()
	if f.producerRejects {
		return
	}

	f.mu.Lock()
	if f.state != statePending {
		f.mu.Unlock()
		return
	}
	f.cancelled = true
	f.mu.Unlock()

	var zero T
	f.complete(zero, errors.Cancelled(nil, "future"))
}

func (f *Future[T]) wasCancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.cancelled
}

func (f *Future[T]) Cancelled() bool {
	return f.token.Cancelled()
}

// Map chains fn onto f. The returned future rejects with f's error without calling fn.
func Map[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	next := newFuture[U](f.s)
	f.Then(func(value T, err error) {
		if err != nil {
			var zero U
			next.complete(zero, err)
			return
		}

		mapped, err := fn(value)
		next.complete(mapped, err)
	})

	return next
}
