package vfs

import (
	"context"

	"github.com/mwantia/asyncvfs/data"
	"github.com/mwantia/asyncvfs/stream"
)

// Jail exposes the subtree of a handle as a backend of its own. Paths are normalized
// before being joined with the jail root, so ".." can never escape it.
type Jail struct {
	root File
}

func NewJail(root File) *Jail {
	return &Jail{root: root}
}

func (j *Jail) Name() string {
	return "jail:" + j.root.String()
}

func (j *Jail) resolve(path string) File {
	return j.root.Child(data.ToRelativePath(data.Normalize(path), "/"))
}

// unresolve maps a handle of the parent backend back into the jail.
func (j *Jail) unresolve(file File) File {
	return NewFile(j, data.ToRelativePath(file.Path(), j.root.Path()))
}

func (j *Jail) unresolvePath(path string) string {
	if path == "" {
		return ""
	}
	return data.Normalize(data.ToRelativePath(path, j.root.Path()))
}

func (j *Jail) Open(ctx context.Context, path string, mode data.OpenMode) (stream.Stream, error) {
	return j.resolve(path).Open(ctx, mode)
}

func (j *Jail) Stat(ctx context.Context, path string) (*Stat, error) {
	stat, err := j.resolve(path).Stat(ctx)
	if err != nil {
		return nil, err
	}

	jailed := *stat
	jailed.File = NewFile(j, path)
	return &jailed, nil
}

func (j *Jail) List(ctx context.Context, path string) (Iterator, error) {
	it, err := j.resolve(path).List(ctx)
	if err != nil {
		return nil, err
	}
	return MapIterator(it, j.unresolve), nil
}

func (j *Jail) Put(ctx context.Context, path string, content stream.Stream, attrs ...Attribute) error {
	return j.resolve(path).Put(ctx, content, attrs...)
}

func (j *Jail) Delete(ctx context.Context, path string) (bool, error) {
	return j.resolve(path).Delete(ctx)
}

func (j *Jail) Mkdir(ctx context.Context, path string, attrs ...Attribute) (bool, error) {
	return j.resolve(path).Mkdir(ctx, attrs...)
}

func (j *Jail) Rename(ctx context.Context, src, dst string) (bool, error) {
	return j.root.backend.Rename(ctx, j.resolve(src).Path(), j.resolve(dst).Path())
}

func (j *Jail) SetAttributes(ctx context.Context, path string, attrs ...Attribute) error {
	return j.resolve(path).SetAttributes(ctx, attrs...)
}

func (j *Jail) SetSize(ctx context.Context, path string, size int64) error {
	return j.resolve(path).SetSize(ctx, size)
}

func (j *Jail) Watch(ctx context.Context, path string, handler func(Event)) (Subscription, error) {
	return j.resolve(path).Watch(ctx, func(e Event) {
		handler(Event{
			Kind:    e.Kind,
			Path:    j.unresolvePath(e.Path),
			NewPath: j.unresolvePath(e.NewPath),
		})
	})
}

func (j *Jail) Exec(ctx context.Context, path string, args []string, handler ProcessHandler) (int, error) {
	return j.resolve(path).Exec(ctx, args, handler)
}
