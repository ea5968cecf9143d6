package vfs

import (
	"sync"

	"github.com/google/uuid"
	"github.com/mwantia/asyncvfs/data"
)

type EventKind int

const (
	Created EventKind = iota
	Modified
	Deleted
	Renamed
)

func (k EventKind) String() string {
	switch k {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	case Renamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Event describes one change. NewPath is only set for Renamed.
type Event struct {
	Kind    EventKind
	Path    string
	NewPath string
}

// Subscription stops delivery when closed. Close may be called any number of times.
type Subscription interface {
	Close() error
}

type watcher struct {
	path    string
	handler func(Event)
}

// Hub fans events out to the watchers registered for the affected paths.
type Hub struct {
	mu       sync.RWMutex
	watchers map[uuid.UUID]*watcher
}

func NewHub() *Hub {
	return &Hub{
		watchers: make(map[uuid.UUID]*watcher),
	}
}

func (h *Hub) Subscribe(path string, handler func(Event)) Subscription {
	id := uuid.Must(uuid.NewV7())

	h.mu.Lock()
	defer h.mu.Unlock()

	h.watchers[id] = &watcher{
		path:    data.Normalize(path),
		handler: handler,
	}

	return &subscription{hub: h, id: id}
}

// Emit delivers e synchronously to every matching watcher.
func (h *Hub) Emit(e Event) {
	h.mu.RLock()
	matching := make([]func(Event), 0, len(h.watchers))
	for _, w := range h.watchers {
		if data.HasPrefix(e.Path, w.path) || (e.NewPath != "" && data.HasPrefix(e.NewPath, w.path)) {
			matching = append(matching, w.handler)
		}
	}
	h.mu.RUnlock()

	for _, handler := range matching {
		handler(e)
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.watchers)
}

type subscription struct {
	hub  *Hub
	id   uuid.UUID
	once sync.Once
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()

		delete(s.hub.watchers, s.id)
	})
	return nil
}

// SubscriptionFunc adapts a release function into an idempotent Subscription.
func SubscriptionFunc(release func() error) Subscription {
	return &funcSubscription{release: release}
}

type funcSubscription struct {
	once    sync.Once
	release func() error
	err     error
}

func (s *funcSubscription) Close() error {
	s.once.Do(func() {
		s.err = s.release()
	})
	return s.err
}
