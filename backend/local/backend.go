package local

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mwantia/asyncvfs/async"
	"github.com/mwantia/asyncvfs/data"
	vfserrors "github.com/mwantia/asyncvfs/data/errors"
	"github.com/mwantia/asyncvfs/log"
	"github.com/mwantia/asyncvfs/vfs"
)

// LocalBackend provides access to a directory of the local filesystem.
// All operations are relative to the root path specified during creation,
// and every disk access runs on the scheduler's worker pool.
type LocalBackend struct {
	root string
	log  *log.Logger
}

type Option func(*Options) error

type Options struct {
	CreateRoot bool
	Logger     *log.Logger
}

// WithCreateRoot creates the root directory and its parents when missing.
func WithCreateRoot() Option {
	return func(o *Options) error {
		o.CreateRoot = true
		return nil
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(o *Options) error {
		o.Logger = logger
		return nil
	}
}

// New creates a LocalBackend rooted at root, which must be an existing directory
// unless WithCreateRoot is given.
func New(root string, opts ...Option) (*LocalBackend, error) {
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

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, vfserrors.Invalid(err, "invalid root '%s'", root)
	}

	if options.CreateRoot {
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return nil, mapError(err, abs)
		}
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, mapError(err, abs)
	}
	if !info.IsDir() {
		return nil, vfserrors.NotDirectory(nil, abs)
	}

	return &LocalBackend{
		root: abs,
		log:  logger.Named("local"),
	}, nil
}

func (*LocalBackend) Name() string {
	return "local"
}

func (lb *LocalBackend) Root() vfs.File {
	return vfs.Root(lb)
}

// resolvePath joins the backend root with the normalized path. A normalized
// path never contains "..", so the result stays below root.
func (lb *LocalBackend) resolvePath(path string) string {
	return filepath.Join(lb.root, filepath.FromSlash(data.Normalize(path)))
}

// virtualPath maps an OS path below root back to a backend path.
func (lb *LocalBackend) virtualPath(full string) string {
	rel, err := filepath.Rel(lb.root, full)
	if err != nil {
		return "/"
	}
	return data.Normalize(filepath.ToSlash(rel))
}

func mapError(err error, path string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return vfserrors.NotFound(err, path)
	case errors.Is(err, fs.ErrPermission):
		return vfserrors.Permission(err, path)
	case errors.Is(err, fs.ErrExist):
		return vfserrors.Exists(err, path)
	default:
		return err
	}
}

// blocking runs fn on the worker pool unless the caller was cancelled before it started.
// It returns only after fn is done, so fn may use the caller's buffers.
func blocking[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	return async.RunBlockingWait(ctx, func(token *async.CancellationToken) (T, error) {
		if err := token.Check(); err != nil {
			var zero T
			return zero, err
		}
		return fn()
	})
}

// openFile opens a file on the worker pool. A file opened after the caller gave
// up is closed again instead of leaking.
func openFile(ctx context.Context, fn func() (*os.File, error)) (*os.File, error) {
	return async.RunBlockingRelease(ctx, func(token *async.CancellationToken) (*os.File, error) {
		if err := token.Check(); err != nil {
			return nil, err
		}
		return fn()
	}, func(file *os.File) {
		file.Close()
	})
}
