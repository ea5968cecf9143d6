// Package asynctest provides schedulers scoped to a single test.
package asynctest

import (
	"context"
	"testing"
	"time"

	"github.com/mwantia/asyncvfs/async"
	"github.com/mwantia/asyncvfs/log"
)

// Scheduler returns a fresh scheduler that is closed when tb finishes.
func Scheduler(tb testing.TB, opts ...async.SchedulerOption) *async.Scheduler {
	tb.Helper()

	opts = append([]async.SchedulerOption{async.WithLogger(log.Discard())}, opts...)
	s, err := async.NewScheduler(opts...)
	if err != nil {
		tb.Fatalf("NewScheduler failed: %v", err)
	}

	tb.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.Close(ctx); err != nil {
			tb.Errorf("Close failed: %v", err)
		}
	})

	return s
}

// Context returns the test context with a fresh scheduler bound to it.
func Context(tb testing.TB, opts ...async.SchedulerOption) context.Context {
	tb.Helper()

	return async.WithScheduler(tb.Context(), Scheduler(tb, opts...))
}
