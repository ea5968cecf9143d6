package async

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/mwantia/asyncvfs/data/errors"
	"github.com/mwantia/asyncvfs/log"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
)

// Scheduler owns one event queue and one bounded worker pool.
// Ready callbacks are executed one at a time in FIFO order by a single loop goroutine,
// while blocking work is confined to the worker pool.
type Scheduler struct {
	log  *log.Logger
	name string

	mu      sync.Mutex
	queue   []func()
	signal  chan struct{}
	closing bool
	stopped bool
	done    chan struct{}

	submitMu sync.RWMutex
	closed   bool
	shutdown chan struct{}
	slots    chan struct{}
	workers  *pool.Pool
	inFlight atomic.Int64

	suspended atomic.Int64
}

func NewScheduler(opts ...SchedulerOption) (*Scheduler, error) {
	options := newDefaultSchedulerOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	logger := options.Logger
	if logger == nil {
		logger = log.Default("async")
	}

	s := &Scheduler{
		log:      logger.Named(options.Name),
		name:     options.Name,
		signal:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		shutdown: make(chan struct{}),
		slots:    make(chan struct{}, options.Workers),
		workers:  pool.New(),
	}

	go s.loop()

	s.log.Debug("NewScheduler: started with %d workers", options.Workers)
	return s, nil
}

// Queue appends fn to the event queue. It never runs fn on the caller's stack.
func (s *Scheduler) Queue(fn func()) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		// The loop is gone; late resumptions still have to reach their waiters.
		go s.run(fn)
		return
	}

	s.queue = append(s.queue, fn)
	s.mu.Unlock()

	s.wake()
}

// InFlight returns the number of worker pool submissions that did not complete yet.
func (s *Scheduler) InFlight() int64 {
	return s.inFlight.Load()
}

// Suspended returns the number of suspended tasks whose continuation was not resumed yet.
func (s *Scheduler) Suspended() int64 {
	return s.suspended.Load()
}

// Idle reports whether there is neither queued, in-flight nor suspended work.
func (s *Scheduler) Idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.queue) == 0 && s.inFlight.Load() == 0 && s.suspended.Load() == 0
}

func (s *Scheduler) Logger() *log.Logger {
	return s.log
}

// Close stops accepting blocking work, waits for the worker pool and drains the queue.
func (s *Scheduler) Close(ctx context.Context) error {
	s.submitMu.Lock()
	already := s.closed
	if !already {
		s.closed = true
		close(s.shutdown)
	}
	s.submitMu.Unlock()

	if already {
		return nil
	}

	s.log.Debug("Close: waiting for %d in-flight submissions", s.InFlight())

	waited := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(waited)
	}()

	select {
	case <-waited:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.wake()

	select {
	case <-s.done:
		s.log.Debug("Close: scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) wake() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop() {
	defer close(s.done)

	for {
		s.mu.Lock()
		for len(s.queue) == 0 {
			if s.closing {
				s.stopped = true
				s.mu.Unlock()
				return
			}

			s.mu.Unlock()
			<-s.signal
			s.mu.Lock()
		}

		fn := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.run(fn)
	}
}

func (s *Scheduler) run(fn func()) {
	var catcher panics.Catcher
	catcher.Try(fn)

	if r := catcher.Recovered(); r != nil {
		s.log.Error("Queue: callback panicked - %v", r.Value)
	}
}

// submit hands fn to the worker pool once one of the worker slots is free.
// Waiting for a slot ends with ctx or with the scheduler closing.
func (s *Scheduler) submit(ctx context.Context, fn func()) error {
	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		return errors.Cancelled(ctx.Err(), "submit")
	case <-s.shutdown:
		return errors.ShutDown(s.name)
	}

	s.submitMu.RLock()
	defer s.submitMu.RUnlock()

	if s.closed {
		<-s.slots
		return errors.ShutDown(s.name)
	}

	s.workers.Go(func() {
		defer func() {
			<-s.slots
		}()
		fn()
	})
	return nil
}
