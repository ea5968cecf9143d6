package vfs

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mwantia/asyncvfs/data"
	"github.com/mwantia/asyncvfs/stream"
)

// File is an immutable (backend, path) handle. It holds no open resources;
// every method issues a fresh operation against the backend.
type File struct {
	backend Backend
	path    string
}

// NewFile returns a handle for path on backend. The path is normalized.
func NewFile(backend Backend, path string) File {
	return File{
		backend: backend,
		path:    data.Normalize(path),
	}
}

// Root returns the handle for "/" on backend.
func Root(backend Backend) File {
	return NewFile(backend, "/")
}

func (f File) Backend() Backend {
	return f.backend
}

func (f File) Path() string {
	return f.path
}

// Base returns the last path segment.
func (f File) Base() string {
	return data.Base(f.path)
}

func (f File) Ext() string {
	return data.Ext(f.path)
}

// NameWithoutExt returns the last segment without its extension.
func (f File) NameWithoutExt() string {
	base := f.Base()
	if idx := strings.LastIndex(base, "."); idx >= 0 {
		return base[:idx]
	}
	return base
}

func (f File) Parent() File {
	return File{backend: f.backend, path: data.Dir(f.path)}
}

// Child resolves rel against this handle; "..", "." and absolute paths are honored.
func (f File) Child(rel string) File {
	return File{backend: f.backend, path: data.Combine(f.path, rel)}
}

// WithExtension replaces the extension, or removes it when ext is empty.
func (f File) WithExtension(ext string) File {
	name := f.NameWithoutExt()
	if ext != "" {
		name += "." + ext
	}
	return f.Parent().Child(name)
}

func (f File) AppendExtension(ext string) File {
	return File{backend: f.backend, path: f.path + "." + ext}
}

func (f File) String() string {
	if f.backend == nil {
		return f.path
	}
	return fmt.Sprintf("%s[%s]", f.backend.Name(), f.path)
}

func (f File) Open(ctx context.Context, mode data.OpenMode) (stream.Stream, error) {
	return f.backend.Open(ctx, f.path, mode)
}

// Read returns the whole content.
func (f File) Read(ctx context.Context) ([]byte, error) {
	s, err := f.Open(ctx, data.ModeRead)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	return stream.ReadAll(s)
}

func (f File) ReadString(ctx context.Context) (string, error) {
	content, err := f.Read(ctx)
	return string(content), err
}

// ReadChunk reads up to size bytes starting at offset.
func (f File) ReadChunk(ctx context.Context, offset int64, size int) ([]byte, error) {
	s, err := f.Open(ctx, data.ModeRead)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	if err := stream.SetPosition(s, offset); err != nil {
		return nil, err
	}

	buf := make([]byte, size)
	n, err := io.ReadFull(s, buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		err = nil
	}
	return buf[:n], err
}

// WriteChunk writes p at offset, creating the file when missing.
// With resize the file is cut right after the written bytes.
func (f File) WriteChunk(ctx context.Context, p []byte, offset int64, resize bool) error {
	s, err := f.Open(ctx, data.OpenRead|data.OpenWrite|data.OpenCreateIfNotExists)
	if err != nil {
		return err
	}

	if err := stream.SetPosition(s, offset); err != nil {
		s.Close()
		return err
	}

	if _, err := s.Write(p); err != nil {
		s.Close()
		return err
	}

	if resize {
		if err := s.SetLength(offset + int64(len(p))); err != nil {
			s.Close()
			return err
		}
	}

	return s.Close()
}

func (f File) Put(ctx context.Context, content stream.Stream, attrs ...Attribute) error {
	return f.backend.Put(ctx, f.path, content, attrs...)
}

func (f File) Write(ctx context.Context, p []byte, attrs ...Attribute) error {
	return f.Put(ctx, stream.NewMemory(p), attrs...)
}

func (f File) WriteString(ctx context.Context, s string, attrs ...Attribute) error {
	return f.Write(ctx, []byte(s), attrs...)
}

// WriteStream puts the remaining content of src and returns its size.
func (f File) WriteStream(ctx context.Context, src stream.Stream, attrs ...Attribute) (int64, error) {
	size, err := stream.Available(src)
	if err != nil {
		return 0, err
	}

	if err := f.Put(ctx, src, attrs...); err != nil {
		return 0, err
	}
	return size, nil
}

// WriteFile copies the content of src into f.
func (f File) WriteFile(ctx context.Context, src File, attrs ...Attribute) (int64, error) {
	return src.CopyTo(ctx, f, attrs...)
}

func (f File) Stat(ctx context.Context) (*Stat, error) {
	return f.backend.Stat(ctx, f.path)
}

func (f File) Size(ctx context.Context) (int64, error) {
	stat, err := f.Stat(ctx)
	if err != nil {
		return 0, err
	}
	return stat.Size, nil
}

// Exists reports false for missing paths and for paths whose stat failed.
func (f File) Exists(ctx context.Context) bool {
	stat, err := f.Stat(ctx)
	if err != nil {
		return false
	}
	return stat.Exists
}

func (f File) IsDirectory(ctx context.Context) (bool, error) {
	stat, err := f.Stat(ctx)
	if err != nil {
		return false, err
	}
	return stat.IsDirectory, nil
}

func (f File) Delete(ctx context.Context) (bool, error) {
	return f.backend.Delete(ctx, f.path)
}

func (f File) Mkdir(ctx context.Context, attrs ...Attribute) (bool, error) {
	return f.backend.Mkdir(ctx, f.path, attrs...)
}

// Mkdirs creates every missing directory from root down to f.
func (f File) Mkdirs(ctx context.Context, attrs ...Attribute) error {
	current := Root(f.backend)
	for _, segment := range data.Split(f.path) {
		current = current.Child(segment)
		if _, err := current.Mkdir(ctx, attrs...); err != nil {
			return err
		}
	}
	return nil
}

// EnsureParents creates the parent directories of f and returns f.
func (f File) EnsureParents(ctx context.Context) (File, error) {
	return f, f.Parent().Mkdirs(ctx)
}

func (f File) SetAttributes(ctx context.Context, attrs ...Attribute) error {
	return f.backend.SetAttributes(ctx, f.path, attrs...)
}

func (f File) SetSize(ctx context.Context, size int64) error {
	return f.backend.SetSize(ctx, f.path, size)
}

// Rename moves f to dst, resolved relative to the parent of f.
func (f File) Rename(ctx context.Context, dst string) (bool, error) {
	return f.backend.Rename(ctx, f.path, data.Combine(data.Dir(f.path), dst))
}

func (f File) List(ctx context.Context) (Iterator, error) {
	return f.backend.List(ctx, f.path)
}

func (f File) Watch(ctx context.Context, handler func(Event)) (Subscription, error) {
	return f.backend.Watch(ctx, f.path, handler)
}

func (f File) Exec(ctx context.Context, args []string, handler ProcessHandler) (int, error) {
	return f.backend.Exec(ctx, f.path, args, handler)
}

// ExecToString runs args and returns stdout and stderr combined.
func (f File) ExecToString(ctx context.Context, args ...string) (string, error) {
	handler := &BufferedProcessHandler{}

	code, err := f.Exec(ctx, args, handler)
	if err != nil {
		return "", err
	}
	if code != 0 {
		return handler.Stdout() + handler.Stderr(), fmt.Errorf("command %q exited with code %d", args, code)
	}

	return handler.Stdout() + handler.Stderr(), nil
}

// Jail returns the root of a view that cannot reach outside f.
func (f File) Jail() File {
	return Root(NewJail(f))
}
