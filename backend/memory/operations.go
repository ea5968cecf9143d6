package memory

import (
	"context"
	"io"

	"github.com/mwantia/asyncvfs/data"
	"github.com/mwantia/asyncvfs/data/errors"
	"github.com/mwantia/asyncvfs/stream"
	"github.com/mwantia/asyncvfs/vfs"
)

func (mb *MemoryBackend) Open(ctx context.Context, path string, mode data.OpenMode) (stream.Stream, error) {
	path = data.Normalize(path)
	mb.log.Debug("Open: opening %s (mode=%s)", path, mode)

	mb.mu.Lock()
	n, err := mb.lookupUnsafe(path)
	created := false

	if err != nil {
		if !errors.IsNotExist(err) || !mode.HasCreate() {
			mb.mu.Unlock()
			return nil, err
		}

		parent, err := mb.lookupDirUnsafe(data.Dir(path))
		if err != nil {
			mb.mu.Unlock()
			return nil, err
		}

		n = mb.newNode(data.Base(path), false)
		n.setParentUnsafe(parent)
		created = true
	}
	mb.mu.Unlock()

	if n.dir {
		return nil, errors.IsDirectory(nil, path)
	}

	if created {
		mb.emit(vfs.Created, path, "")
	}

	s := stream.NewCursor(n.buffer, func() {
		mb.modified(n)
	})

	if mode.HasTruncate() {
		if err := s.SetLength(0); err != nil {
			return nil, err
		}
	}
	if mode.HasAppend() {
		if _, err := s.Seek(0, io.SeekEnd); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// modified stamps n and emits a change event, unless n is no longer reachable.
func (mb *MemoryBackend) modified(n *node) {
	mb.mu.Lock()
	n.modTime = now()
	path, reachable := mb.pathUnsafe(n)
	mb.mu.Unlock()

	if reachable {
		mb.emit(vfs.Modified, path, "")
	}
}

// Stat never fails for a missing path; lookup failures produce a non-existent snapshot.
func (mb *MemoryBackend) Stat(ctx context.Context, path string) (*vfs.Stat, error) {
	path = data.Normalize(path)
	file := vfs.NewFile(mb, path)

	mb.mu.RLock()
	defer mb.mu.RUnlock()

	n, err := mb.lookupUnsafe(path)
	if err != nil {
		return vfs.NotExists(file), nil
	}

	if n.dir {
		return vfs.NewDirectoryStat(file, n.modTime), nil
	}

	stat := vfs.NewFileStat(file, n.buffer.Len(), n.modTime)
	if mimeType, ok := vfs.Lookup[vfs.MimeType](n.attrs); ok {
		stat.ContentType = data.ContentType(mimeType)
	}
	return stat, nil
}

// List looks the directory up immediately but reads its children on the first Next.
func (mb *MemoryBackend) List(ctx context.Context, path string) (vfs.Iterator, error) {
	path = data.Normalize(path)

	mb.mu.RLock()
	dir, err := mb.lookupDirUnsafe(path)
	mb.mu.RUnlock()

	if err != nil {
		return nil, err
	}

	return vfs.LazyIterator(func(ctx context.Context) ([]vfs.File, error) {
		mb.mu.RLock()
		defer mb.mu.RUnlock()

		files := make([]vfs.File, 0, dir.children.Len())
		dir.children.Scan(func(name string, _ *node) bool {
			files = append(files, vfs.NewFile(mb, data.Combine(path, name)))
			return true
		})
		return files, nil
	}), nil
}

func (mb *MemoryBackend) Put(ctx context.Context, path string, content stream.Stream, attrs ...vfs.Attribute) error {
	if err := vfs.PutByOpen(ctx, mb, path, content); err != nil {
		return err
	}

	if len(attrs) > 0 {
		return mb.SetAttributes(ctx, path, attrs...)
	}
	return nil
}

// Delete detaches the node from its parent. Children of a deleted directory are
// not visited; they stay attached to the orphan and become unreachable.
func (mb *MemoryBackend) Delete(ctx context.Context, path string) (bool, error) {
	path = data.Normalize(path)

	mb.mu.Lock()
	n, err := mb.lookupUnsafe(path)
	if err != nil || n == mb.root {
		mb.mu.Unlock()
		return false, nil
	}

	n.setParentUnsafe(nil)
	mb.mu.Unlock()

	mb.log.Debug("Delete: detached %s", path)
	mb.emit(vfs.Deleted, path, "")
	return true, nil
}

// Mkdir returns false without changes when a child with that name exists.
func (mb *MemoryBackend) Mkdir(ctx context.Context, path string, attrs ...vfs.Attribute) (bool, error) {
	path = data.Normalize(path)
	if path == "/" {
		return false, nil
	}

	mb.mu.Lock()
	parent, err := mb.lookupDirUnsafe(data.Dir(path))
	if err != nil {
		mb.mu.Unlock()
		return false, err
	}

	if parent.child(data.Base(path)) != nil {
		mb.mu.Unlock()
		return false, nil
	}

	n := mb.newNode(data.Base(path), true)
	n.attrs = attrs
	n.setParentUnsafe(parent)
	mb.mu.Unlock()

	mb.emit(vfs.Created, path, "")
	return true, nil
}

// Rename reparents the source node under the destination folder.
// A node already present at the destination is replaced and orphaned.
func (mb *MemoryBackend) Rename(ctx context.Context, src, dst string) (bool, error) {
	src, dst = data.Normalize(src), data.Normalize(dst)
	if src == dst {
		return false, nil
	}

	mb.mu.Lock()
	n, err := mb.lookupUnsafe(src)
	if err != nil {
		mb.mu.Unlock()
		return false, err
	}
	if n == mb.root {
		mb.mu.Unlock()
		return false, errors.Invalid(nil, "cannot rename root")
	}

	parent, err := mb.lookupDirUnsafe(data.Dir(dst))
	if err != nil {
		mb.mu.Unlock()
		return false, err
	}
	if n.isAncestorOf(parent) {
		mb.mu.Unlock()
		return false, errors.Invalid(nil, "cannot move '%s' below itself", src)
	}

	n.setParentUnsafe(nil)
	n.name = data.Base(dst)
	n.setParentUnsafe(parent)
	mb.mu.Unlock()

	mb.log.Debug("Rename: moved %s to %s", src, dst)
	mb.emit(vfs.Renamed, src, dst)
	return true, nil
}

func (mb *MemoryBackend) SetAttributes(ctx context.Context, path string, attrs ...vfs.Attribute) error {
	path = data.Normalize(path)

	mb.mu.Lock()
	defer mb.mu.Unlock()

	n, err := mb.lookupUnsafe(path)
	if err != nil {
		return err
	}

	n.attrs = attrs
	return nil
}

func (mb *MemoryBackend) SetSize(ctx context.Context, path string, size int64) error {
	path = data.Normalize(path)

	mb.mu.RLock()
	n, err := mb.lookupUnsafe(path)
	mb.mu.RUnlock()

	if err != nil {
		return err
	}
	if n.dir {
		return errors.IsDirectory(nil, path)
	}

	return stream.NewCursor(n.buffer, func() {
		mb.modified(n)
	}).SetLength(size)
}

func (mb *MemoryBackend) Watch(ctx context.Context, path string, handler func(vfs.Event)) (vfs.Subscription, error) {
	return mb.hub.Subscribe(path, handler), nil
}
