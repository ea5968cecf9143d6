package async

import (
	"fmt"

	"github.com/mwantia/asyncvfs/log"
)

const DefaultWorkers = 4

type SchedulerOption func(*SchedulerOptions) error

type SchedulerOptions struct {
	Name    string
	Workers int
	Logger  *log.Logger
}

func newDefaultSchedulerOptions() *SchedulerOptions {
	return &SchedulerOptions{
		Name:    "scheduler",
		Workers: DefaultWorkers,
	}
}

// WithWorkers sets the fixed size of the blocking worker pool.
func WithWorkers(workers int) SchedulerOption {
	return func(o *SchedulerOptions) error {
		if workers < 1 {
			return fmt.Errorf("worker pool size must be at least 1, got %d", workers)
		}
		o.Workers = workers
		return nil
	}
}

func WithLogger(logger *log.Logger) SchedulerOption {
	return func(o *SchedulerOptions) error {
		o.Logger = logger
		return nil
	}
}

// WithQueueName names the scheduler in log output.
func WithQueueName(name string) SchedulerOption {
	return func(o *SchedulerOptions) error {
		o.Name = name
		return nil
	}
}
