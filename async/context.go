package async

import "context"

type schedulerKey struct{}

// WithScheduler binds s to ctx. Every suspending call below ctx dispatches through s.
func WithScheduler(ctx context.Context, s *Scheduler) context.Context {
	return context.WithValue(ctx, schedulerKey{}, s)
}

func FromContext(ctx context.Context) (*Scheduler, bool) {
	s, ok := ctx.Value(schedulerKey{}).(*Scheduler)
	return s, ok && s != nil
}

func mustScheduler(ctx context.Context) *Scheduler {
	s, ok := FromContext(ctx)
	if !ok {
		panic("async: no scheduler bound to context, use async.WithScheduler")
	}
	return s
}

// Run creates a scheduler, binds it to ctx for the duration of fn and closes it afterwards.
func Run(ctx context.Context, fn func(ctx context.Context) error, opts ...SchedulerOption) error {
	s, err := NewScheduler(opts...)
	if err != nil {
		return err
	}

	runErr := fn(WithScheduler(ctx, s))
	if err := s.Close(context.WithoutCancel(ctx)); err != nil && runErr == nil {
		return err
	}

	return runErr
}
