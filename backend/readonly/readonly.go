package readonly

import (
	"context"

	"github.com/mwantia/asyncvfs/data"
	"github.com/mwantia/asyncvfs/data/errors"
	"github.com/mwantia/asyncvfs/stream"
	"github.com/mwantia/asyncvfs/vfs"
)

// ReadOnlyBackend wraps any backend to make it read-only.
// All read operations are passed through to the underlying backend.
// All write operations return ErrReadOnly.
type ReadOnlyBackend struct {
	backend vfs.Backend
}

// New creates a new read-only wrapper around the given backend.
func New(backend vfs.Backend) *ReadOnlyBackend {
	return &ReadOnlyBackend{
		backend: backend,
	}
}

func (rob *ReadOnlyBackend) Name() string {
	return "readonly:" + rob.backend.Name()
}

func (rob *ReadOnlyBackend) Root() vfs.File {
	return vfs.Root(rob)
}

// Unwrap returns the wrapped backend.
func (rob *ReadOnlyBackend) Unwrap() vfs.Backend {
	return rob.backend
}

// Open rejects every mode that could change the resource.
func (rob *ReadOnlyBackend) Open(ctx context.Context, path string, mode data.OpenMode) (stream.Stream, error) {
	if mode.CanWrite() || mode.HasCreate() {
		return nil, errors.ReadOnly(nil, "open", path)
	}

	s, err := rob.backend.Open(ctx, path, mode)
	if err != nil {
		return nil, err
	}
	return &readOnlyStream{Stream: s, path: path}, nil
}

func (rob *ReadOnlyBackend) Stat(ctx context.Context, path string) (*vfs.Stat, error) {
	stat, err := rob.backend.Stat(ctx, path)
	if err != nil {
		return nil, err
	}

	wrapped := *stat
	wrapped.File = vfs.NewFile(rob, stat.File.Path())
	return &wrapped, nil
}

func (rob *ReadOnlyBackend) List(ctx context.Context, path string) (vfs.Iterator, error) {
	it, err := rob.backend.List(ctx, path)
	if err != nil {
		return nil, err
	}

	return vfs.MapIterator(it, func(file vfs.File) vfs.File {
		return vfs.NewFile(rob, file.Path())
	}), nil
}

func (rob *ReadOnlyBackend) Put(ctx context.Context, path string, content stream.Stream, attrs ...vfs.Attribute) error {
	return errors.ReadOnly(nil, "put", path)
}

func (rob *ReadOnlyBackend) Delete(ctx context.Context, path string) (bool, error) {
	return false, errors.ReadOnly(nil, "delete", path)
}

func (rob *ReadOnlyBackend) Mkdir(ctx context.Context, path string, attrs ...vfs.Attribute) (bool, error) {
	return false, errors.ReadOnly(nil, "mkdir", path)
}

func (rob *ReadOnlyBackend) Rename(ctx context.Context, src, dst string) (bool, error) {
	return false, errors.ReadOnly(nil, "rename", src)
}

func (rob *ReadOnlyBackend) SetAttributes(ctx context.Context, path string, attrs ...vfs.Attribute) error {
	return errors.ReadOnly(nil, "setAttributes", path)
}

func (rob *ReadOnlyBackend) SetSize(ctx context.Context, path string, size int64) error {
	return errors.ReadOnly(nil, "setSize", path)
}

func (rob *ReadOnlyBackend) Watch(ctx context.Context, path string, handler func(vfs.Event)) (vfs.Subscription, error) {
	return rob.backend.Watch(ctx, path, handler)
}

// Exec is refused since a command could modify the tree it runs in.
func (rob *ReadOnlyBackend) Exec(ctx context.Context, path string, args []string, handler vfs.ProcessHandler) (int, error) {
	return -1, errors.ReadOnly(nil, "exec", path)
}

type readOnlyStream struct {
	stream.Stream
	path string
}

func (s *readOnlyStream) Write(p []byte) (int, error) {
	return 0, errors.ReadOnly(nil, "write", s.path)
}

func (s *readOnlyStream) SetLength(size int64) error {
	return errors.ReadOnly(nil, "setLength", s.path)
}
