package async

import (
	"context"

	"github.com/mwantia/asyncvfs/data/errors"
)

// Blocking submits work to the worker pool. The in-flight counter is raised on
// submission and lowered before the outcome is published. If the token is set by
// the time work returns, the outcome is a cancelled error and the value is dropped.
//
// Work running on the pool must not submit further blocking work and wait for it,
// since a saturated pool blocks new submissions.
func Blocking[T any](ctx context.Context, work func(token *CancellationToken) (T, error)) *Future[T] {
	f, _ := blocking(ctx, work, nil)
	return f
}

// BlockingRelease is Blocking for work that acquires a resource. A value dropped
// because of cancellation is handed to release on the worker.
func BlockingRelease[T any](ctx context.Context, work func(token *CancellationToken) (T, error), release func(T)) *Future[T] {
	f, _ := blocking(ctx, work, release)
	return f
}

// RunBlocking submits work to the worker pool and awaits its outcome.
func RunBlocking[T any](ctx context.Context, work func(token *CancellationToken) (T, error)) (T, error) {
	return await(ctx, Blocking(ctx, work))
}

// RunBlockingRelease awaits BlockingRelease. A value that is produced after the
// caller gave up is released as well.
func RunBlockingRelease[T any](ctx context.Context, work func(token *CancellationToken) (T, error), release func(T)) (T, error) {
	f := BlockingRelease(ctx, work, release)

	value, err := f.Await(ctx)
	if err != nil && ctx.Err() != nil {
		f.Cancel()
		f.Then(func(value T, err error) {
			if err == nil {
				release(value)
			}
		})
	}

	return value, err
}

// RunBlockingWait is RunBlocking that returns only once work has left the pool,
// also when ctx ends first. Work may use buffers owned by the caller.
func RunBlockingWait[T any](ctx context.Context, work func(token *CancellationToken) (T, error)) (T, error) {
	f, exited := blocking(ctx, work, nil)
	value, err := await(ctx, f)
	<-exited

	return value, err
}

func await[T any](ctx context.Context, f *Future[T]) (T, error) {
	value, err := f.Await(ctx)
	if err != nil && ctx.Err() != nil {
		f.Cancel()
	}

	return value, err
}

func blocking[T any](ctx context.Context, work func(token *CancellationToken) (T, error), release func(T)) (*Future[T], <-chan struct{}) {
	s := mustScheduler(ctx)
	d := NewDeferred[T](ctx)
	d.future.producerRejects = true
	token := d.Token()
	exited := make(chan struct{})

	if ctx.Err() != nil {
		token.Cancel()
	}
	stop := context.AfterFunc(ctx, token.Cancel)
	s.inFlight.Add(1)

	err := s.submit(ctx, func() {
		defer close(exited)
		defer stop()

		var value T
		err := token.Check()
		if err == nil {
			value, err = try(func() (T, error) {
				return work(token)
			})
		}

		if token.Cancelled() || ctx.Err() != nil {
			if err == nil && release != nil {
				release(value)
			}

			var zero T
			value, err = zero, errors.Cancelled(err, "blocking work")
		}

		s.inFlight.Add(-1)

		if err != nil {
			d.Reject(err)
			return
		}
		d.Resolve(value)
	})

	if err != nil {
		stop()
		s.inFlight.Add(-1)
		close(exited)
		d.Reject(err)
	}

	return d.Future(), exited
}
