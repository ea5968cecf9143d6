package async

import (
	"sync"

	"github.com/mwantia/asyncvfs/data/errors"
)

// CancellationToken is a flag that is set at most once by the consumer
// and polled by the producer at safe points.
type CancellationToken struct {
	once sync.Once
	done chan struct{}
}

func NewCancellationToken() *CancellationToken {
	return &CancellationToken{
		done: make(chan struct{}),
	}
}

// Cancel sets the token. Calling it again has no effect.
func (t *CancellationToken) Cancel() {
	t.once.Do(func() {
		close(t.done)
	})
}

func (t *CancellationToken) Cancelled() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *CancellationToken) Done() <-chan struct{} {
	return t.done
}

// Check returns a cancelled error once the token has been set.
func (t *CancellationToken) Check() error {
	if t.Cancelled() {
		return errors.Cancelled(nil, "operation")
	}
	return nil
}
