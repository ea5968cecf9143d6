package async

import (
	"context"

	"github.com/google/uuid"
	"github.com/mwantia/asyncvfs/data/errors"
	"github.com/sourcegraph/conc/panics"
)

// Spawn starts task immediately and returns its pending future.
// The task context is cancelled when the future is cancelled; the future
// then rejects with a cancelled error whatever the task returned.
func Spawn[T any](ctx context.Context, task func(ctx context.Context) (T, error)) *Future[T] {
	s := mustScheduler(ctx)
	d := NewDeferred[T](ctx)
	token := d.Token()

	id := uuid.Must(uuid.NewV7()).String()
	taskCtx, cancel := context.WithCancel(ctx)

	go func() {
		select {
		case <-token.Done():
			cancel()
		case <-taskCtx.Done():
		}
	}()

	go func() {
		defer cancel()

		s.log.Debug("Spawn: task %s started", id)

		value, err := try(func() (T, error) {
			return task(taskCtx)
		})
		if token.Cancelled() {
			var zero T
			value, err = zero, errors.Cancelled(err, "task "+id)
		}

		if err != nil {
			s.log.Debug("Spawn: task %s failed - %v", id, err)
			d.Reject(err)
			return
		}

		s.log.Debug("Spawn: task %s completed", id)
		d.Resolve(value)
	}()

	return d.Future()
}

// Go spawns a task that only reports success or failure.
func Go(ctx context.Context, task func(ctx context.Context) error) *Future[struct{}] {
	return Spawn(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, task(ctx)
	})
}

// Await suspends until f completes and returns its outcome in the caller's flow.
func Await[T any](ctx context.Context, f *Future[T]) (T, error) {
	return f.Await(ctx)
}

// Parallel spawns every task and awaits all of them, even after a failure.
// When several fail, the failure of the earliest started task is returned.
func Parallel(ctx context.Context, tasks ...func(ctx context.Context) error) error {
	futures := make([]*Future[struct{}], len(tasks))
	for i, task := range tasks {
		futures[i] = Go(ctx, task)
	}

	var first error
	for _, f := range futures {
		if _, err := f.Await(ctx); err != nil && first == nil {
			first = err
		}
	}

	return first
}

// All awaits every future and returns their values in order.
// The error is the first failure in the order of futures.
func All[T any](ctx context.Context, futures ...*Future[T]) ([]T, error) {
	values := make([]T, len(futures))

	var first error
	for i, f := range futures {
		value, err := f.Await(ctx)
		if err != nil {
			if first == nil {
				first = err
			}
			continue
		}
		values[i] = value
	}

	return values, first
}

// Launch runs task without anyone observing its result. Failures are only logged.
// The task keeps running when ctx is cancelled.
func Launch(ctx context.Context, name string, task func(ctx context.Context) error) {
	s := mustScheduler(ctx)

	Go(context.WithoutCancel(ctx), task).Then(func(_ struct{}, err error) {
		if err != nil {
			s.log.Error("Launch: task '%s' failed - %v", name, err)
		}
	})
}

func try[T any](fn func() (T, error)) (value T, err error) {
	var catcher panics.Catcher
	catcher.Try(func() {
		value, err = fn()
	})

	if r := catcher.Recovered(); r != nil {
		var zero T
		return zero, r.AsError()
	}

	return value, err
}
