// Package vfs defines the capability contract every backend satisfies and the
// immutable File handle callers operate through.
package vfs

import (
	"context"

	"github.com/mwantia/asyncvfs/data"
	"github.com/mwantia/asyncvfs/data/errors"
	"github.com/mwantia/asyncvfs/stream"
)

// Backend is a concrete file tree. Operations a backend does not implement
// fail with data.ErrUnsupported; none of them silently succeeds.
type Backend interface {
	// Name identifies the backend in logs and errors.
	Name() string

	// Open returns a stream positioned at 0, or at the end when mode has OpenAppend.
	Open(ctx context.Context, path string, mode data.OpenMode) (stream.Stream, error)

	// Stat returns a fresh snapshot. A missing path yields Exists=false, not an error.
	Stat(ctx context.Context, path string) (*Stat, error)

	// List returns a fresh iterator over the direct children of path.
	List(ctx context.Context, path string) (Iterator, error)

	// Put replaces the content of path with content.
	Put(ctx context.Context, path string, content stream.Stream, attrs ...Attribute) error

	Delete(ctx context.Context, path string) (bool, error)
	Mkdir(ctx context.Context, path string, attrs ...Attribute) (bool, error)
	Rename(ctx context.Context, src, dst string) (bool, error)
	SetAttributes(ctx context.Context, path string, attrs ...Attribute) error
	SetSize(ctx context.Context, path string, size int64) error

	// Watch delivers change events at or below path until the subscription is closed.
	Watch(ctx context.Context, path string, handler func(Event)) (Subscription, error)

	// Exec runs args with path as working directory and returns the exit code.
	Exec(ctx context.Context, path string, args []string, handler ProcessHandler) (int, error)
}

// Base implements every Backend operation by failing with an unsupported error.
// Backends embed it and override the operations they support.
type Base struct {
	BackendName string
}

func (b Base) Name() string {
	return b.BackendName
}

func (b Base) Open(ctx context.Context, path string, mode data.OpenMode) (stream.Stream, error) {
	return nil, errors.Unsupported(nil, "open", b.BackendName)
}

func (b Base) Stat(ctx context.Context, path string) (*Stat, error) {
	return nil, errors.Unsupported(nil, "stat", b.BackendName)
}

func (b Base) List(ctx context.Context, path string) (Iterator, error) {
	return nil, errors.Unsupported(nil, "list", b.BackendName)
}

func (b Base) Put(ctx context.Context, path string, content stream.Stream, attrs ...Attribute) error {
	return errors.Unsupported(nil, "put", b.BackendName)
}

func (b Base) Delete(ctx context.Context, path string) (bool, error) {
	return false, errors.Unsupported(nil, "delete", b.BackendName)
}

func (b Base) Mkdir(ctx context.Context, path string, attrs ...Attribute) (bool, error) {
	return false, errors.Unsupported(nil, "mkdir", b.BackendName)
}

func (b Base) Rename(ctx context.Context, src, dst string) (bool, error) {
	return false, errors.Unsupported(nil, "rename", b.BackendName)
}

func (b Base) SetAttributes(ctx context.Context, path string, attrs ...Attribute) error {
	return errors.Unsupported(nil, "setAttributes", b.BackendName)
}

func (b Base) SetSize(ctx context.Context, path string, size int64) error {
	return errors.Unsupported(nil, "setSize", b.BackendName)
}

func (b Base) Watch(ctx context.Context, path string, handler func(Event)) (Subscription, error) {
	return nil, errors.Unsupported(nil, "watch", b.BackendName)
}

func (b Base) Exec(ctx context.Context, path string, args []string, handler ProcessHandler) (int, error) {
	return -1, errors.Unsupported(nil, "exec", b.BackendName)
}

// PutByOpen implements Put for backends with writable streams: it opens path with
// create and truncate, then copies content from its current position.
func PutByOpen(ctx context.Context, b Backend, path string, content stream.Stream) error {
	dst, err := b.Open(ctx, path, data.ModeCreate)
	if err != nil {
		return err
	}

	if _, err := stream.Copy(dst, content); err != nil {
		dst.Close()
		return err
	}

	return dst.Close()
}
