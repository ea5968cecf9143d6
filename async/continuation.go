package async

import (
	"context"
	"sync/atomic"
)

// Continuation is the one-shot callback a suspended task is parked on.
type Continuation[T any] struct {
	s        *Scheduler
	deferred *Deferred[T]
	resumed  atomic.Bool
}

func (c *Continuation[T]) Resume(value T) {
	c.mark()
	c.deferred.Resolve(value)
}

func (c *Continuation[T]) ResumeWithError(err error) {
	c.mark()
	c.deferred.Reject(err)
}

// Token is set when the suspended caller gives up waiting.
func (c *Continuation[T]) Token() *CancellationToken {
	return c.deferred.Token()
}

func (c *Continuation[T]) mark() {
	if !c.resumed.CompareAndSwap(false, true) {
		panic("async: continuation resumed twice")
	}
	c.s.suspended.Add(-1)
}

// Suspend parks the calling task and hands its continuation to operation.
// The task resumes on the scheduler's turn once the continuation is invoked.
// The scheduler is not idle while a continuation is outstanding.
func Suspend[T any](ctx context.Context, operation func(*Continuation[T])) (T, error) {
	s := mustScheduler(ctx)
	c := &Continuation[T]{
		s:        s,
		deferred: NewDeferred[T](ctx),
	}
	s.suspended.Add(1)

	operation(c)

	value, err := c.deferred.Future().Await(ctx)
	if err != nil && ctx.Err() != nil {
		c.deferred.Token().Cancel()
	}

	return value, err
}
