package memory

import (
	"sync"
	"time"

	"github.com/mwantia/asyncvfs/log"
	"github.com/mwantia/asyncvfs/vfs"
)

// MemoryBackend is a mutable tree of nodes kept entirely in memory.
// Every operation is atomic on its own; sequences of operations are not.
type MemoryBackend struct {
	vfs.Base

	mu  sync.RWMutex
	log *log.Logger
	hub *vfs.Hub

	root            *node
	caseInsensitive bool
}

type Option func(*Options) error

type Options struct {
	CaseInsensitive bool
	Logger          *log.Logger
}

// WithCaseInsensitive makes name lookups ignore case. Names keep the case they were created with.
func WithCaseInsensitive() Option {
	return func(o *Options) error {
		o.CaseInsensitive = true
		return nil
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(o *Options) error {
		o.Logger = logger
		return nil
	}
}

func NewMemoryBackend(opts ...Option) (*MemoryBackend, error) {
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

	mb := &MemoryBackend{
		Base:            vfs.Base{BackendName: "memory"},
		log:             logger.Named("memory"),
		hub:             vfs.NewHub(),
		caseInsensitive: options.CaseInsensitive,
	}
	mb.root = mb.newNode("", true)

	return mb, nil
}

// Returns the identifier name defined for this backend
func (*MemoryBackend) Name() string {
	return "memory"
}

// Root returns a handle for the root of this tree.
func (mb *MemoryBackend) Root() vfs.File {
	return vfs.Root(mb)
}

func (mb *MemoryBackend) emit(kind vfs.EventKind, path, newPath string) {
	mb.log.Debug("Emit: %s %s %s", kind, path, newPath)
	mb.hub.Emit(vfs.Event{Kind: kind, Path: path, NewPath: newPath})
}

func now() time.Time {
	return time.Now()
}
