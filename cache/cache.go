// Package cache memoizes asynchronous computations per key for a limited time.
package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/mwantia/asyncvfs/async"
	"github.com/mwantia/asyncvfs/data/errors"
	"github.com/mwantia/asyncvfs/log"
)

type entry[T any] struct {
	created time.Time
	future  *async.Future[T]
}

// Cache stores the future of the most recent computation for each key.
//
// Single-flight is eventual, not strict: callers racing on a missing or expired
// key may each start a generator. The last stored future wins; superseded ones
// keep running but are no longer referenced.
type Cache[T any] struct {
	items *ttlcache.Cache[string, *entry[T]]
	log   *log.Logger
}

type Option func(*Options) error

type Options struct {
	Capacity uint64
	Logger   *log.Logger
}

// WithCapacity bounds the number of keys; the least recently used key is evicted first.
func WithCapacity(capacity uint64) Option {
	return func(o *Options) error {
		if capacity == 0 {
			return errors.Invalid(nil, "cache capacity must be positive")
		}
		o.Capacity = capacity
		return nil
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(o *Options) error {
		o.Logger = logger
		return nil
	}
}

// New creates a cache and starts its expiry loop. Close stops it.
func New[T any](opts ...Option) (*Cache[T], error) {
	options := &Options{}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	logger := options.Logger
	if logger == nil {
		logger = log.Default("vfs")
	}

	ttlOpts := []ttlcache.Option[string, *entry[T]]{
		ttlcache.WithDisableTouchOnHit[string, *entry[T]](),
	}
	if options.Capacity > 0 {
		ttlOpts = append(ttlOpts, ttlcache.WithCapacity[string, *entry[T]](options.Capacity))
	}

	items := ttlcache.New(ttlOpts...)
	go items.Start()

	return &Cache[T]{
		items: items,
		log:   logger.Named("cache"),
	}, nil
}

// Get returns the value stored for key. When no entry exists or its age reached ttl,
// gen is spawned and its future stored before awaiting. Failures of gen are returned
// to every caller awaiting that future and stay cached for ttl like values do.
//
// The generator runs detached from the cancellation of ctx, since other callers may
// await the same future; a cancelled ctx only stops this caller from waiting.
func (c *Cache[T]) Get(ctx context.Context, key string, ttl time.Duration, gen func(ctx context.Context) (T, error)) (T, error) {
	ttl = max(ttl, 0)

	var current *entry[T]
	if item := c.items.Get(key); item != nil {
		current = item.Value()
		if time.Since(current.created) >= ttl {
			c.log.Debug("Get: entry '%s' expired after %s", key, ttl)
			current = nil
		}
	}

	if current == nil {
		c.log.Debug("Get: generating '%s'", key)

		current = &entry[T]{
			created: time.Now(),
			future:  async.Spawn(context.WithoutCancel(ctx), gen),
		}
		c.items.Set(key, current, ttl)
	}

	return current.future.Await(ctx)
}

// Invalidate drops the entry for key. A generator still running for it is not cancelled.
func (c *Cache[T]) Invalidate(key string) {
	c.items.Delete(key)
}

func (c *Cache[T]) Len() int {
	return c.items.Len()
}

func (c *Cache[T]) Close() error {
	c.items.Stop()
	return nil
}
