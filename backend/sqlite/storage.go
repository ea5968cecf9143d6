package sqlite

import (
	"context"
	"io"
	"io/fs"
	"strings"

	"github.com/mwantia/asyncvfs/data"
	"github.com/mwantia/asyncvfs/data/errors"
	"github.com/mwantia/asyncvfs/stream"
	"github.com/mwantia/asyncvfs/vfs"
)

type openResult struct {
	node    node
	content []byte
	created bool
}

func (sb *SQLiteBackend) Open(ctx context.Context, path string, mode data.OpenMode) (stream.Stream, error) {
	path = data.Normalize(path)
	sb.log.Debug("Open: opening %s (mode=%s)", path, mode)

	result, err := withDB(ctx, func() (openResult, error) {
		sb.mu.Lock()
		defer sb.mu.Unlock()

		n, ok := sb.lookupUnsafe(path)
		if !ok {
			if !mode.HasCreate() {
				return openResult{}, errors.NotFound(nil, path)
			}
			if err := sb.checkParentUnsafe(path); err != nil {
				return openResult{}, err
			}

			created, err := sb.createMetaUnsafe(ctx, path, false, 0o644)
			return openResult{node: created, created: true}, err
		}

		if n.dir {
			return openResult{}, errors.IsDirectory(nil, path)
		}
		if mode.HasTruncate() {
			return openResult{node: n}, nil
		}

		content, err := sb.readContent(ctx, n)
		return openResult{node: n, content: content}, err
	})
	if err != nil {
		return nil, err
	}

	if result.created {
		sb.emit(vfs.Created, path, "")
	}

	s := &nodeStream{
		ctx:      ctx,
		backend:  sb,
		node:     result.node,
		path:     path,
		writable: mode.CanWrite(),
		dirty:    mode.HasTruncate(),
	}
	s.Memory = stream.NewCursor(stream.NewBuffer(result.content), func() {
		s.dirty = true
	})

	if mode.HasAppend() {
		if _, err := s.Seek(0, io.SeekEnd); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// checkParentUnsafe fails unless the parent of key is an existing directory.
// MUST be called while holding the lock.
func (sb *SQLiteBackend) checkParentUnsafe(key string) error {
	parentKey := data.Dir(key)

	parent, ok := sb.lookupUnsafe(parentKey)
	if !ok {
		return errors.NotFound(nil, parentKey)
	}
	if !parent.dir {
		return errors.NotDirectory(nil, parentKey)
	}
	return nil
}

func (sb *SQLiteBackend) Stat(ctx context.Context, path string) (*vfs.Stat, error) {
	path = data.Normalize(path)
	file := vfs.NewFile(sb, path)

	return withDB(ctx, func() (*vfs.Stat, error) {
		sb.mu.RLock()
		defer sb.mu.RUnlock()

		n, ok := sb.lookupUnsafe(path)
		if !ok {
			return vfs.NotExists(file), nil
		}
		if path == "/" {
			return vfs.NewDirectoryStat(file, sb.created), nil
		}

		meta, err := sb.readMeta(ctx, n)
		if err != nil {
			return nil, err
		}

		if n.dir {
			return vfs.NewDirectoryStat(file, meta.modifyTime), nil
		}

		stat := vfs.NewFileStat(file, meta.size, meta.modifyTime)
		stat.ContentType = data.ContentType(meta.contentType)
		return stat, nil
	})
}

// List uses a B-tree range scan, so children come out sorted by name.
func (sb *SQLiteBackend) List(ctx context.Context, path string) (vfs.Iterator, error) {
	path = data.Normalize(path)

	sb.mu.RLock()
	n, ok := sb.lookupUnsafe(path)
	sb.mu.RUnlock()

	if !ok {
		return nil, errors.NotFound(nil, path)
	}
	if !n.dir {
		return nil, errors.NotDirectory(nil, path)
	}

	return vfs.LazyIterator(func(ctx context.Context) ([]vfs.File, error) {
		sb.mu.RLock()
		defer sb.mu.RUnlock()

		var files []vfs.File
		for _, key := range sb.descendantsUnsafe(path) {
			if data.Dir(key) == path {
				files = append(files, vfs.NewFile(sb, key))
			}
		}
		return files, nil
	}), nil
}

func (sb *SQLiteBackend) Put(ctx context.Context, path string, content stream.Stream, attrs ...vfs.Attribute) error {
	if err := vfs.PutByOpen(ctx, sb, path, content); err != nil {
		return err
	}

	if len(attrs) > 0 {
		return sb.SetAttributes(ctx, path, attrs...)
	}
	return nil
}

// Delete removes the node and, for directories, every key below it in one transaction.
func (sb *SQLiteBackend) Delete(ctx context.Context, path string) (bool, error) {
	path = data.Normalize(path)
	if path == "/" {
		return false, nil
	}

	deleted, err := withDB(ctx, func() (bool, error) {
		sb.mu.Lock()
		defer sb.mu.Unlock()

		if _, ok := sb.lookupUnsafe(path); !ok {
			return false, nil
		}
		return true, sb.deleteTreeUnsafe(ctx, path)
	})
	if err != nil || !deleted {
		return false, err
	}

	sb.log.Debug("Delete: removed %s", path)
	sb.emit(vfs.Deleted, path, "")
	return true, nil
}

// deleteTreeUnsafe removes key and its descendants from the database and the B-tree.
// MUST be called while holding the lock.
func (sb *SQLiteBackend) deleteTreeUnsafe(ctx context.Context, key string) error {
	keys := append([]string{key}, sb.descendantsUnsafe(key)...)

	tx, err := sb.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, k := range keys {
		n, _ := sb.keys.Get(k)
		if err := deleteMeta(ctx, tx, n); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	for _, k := range keys {
		sb.keys.Delete(k)
	}
	return nil
}

// Mkdir returns false without changes when the path already exists.
func (sb *SQLiteBackend) Mkdir(ctx context.Context, path string, attrs ...vfs.Attribute) (bool, error) {
	path = data.Normalize(path)
	if path == "/" {
		return false, nil
	}

	perm := fs.FileMode(0o755)
	if mode, ok := vfs.Lookup[vfs.Mode](attrs); ok {
		perm = fs.FileMode(mode).Perm()
	}

	created, err := withDB(ctx, func() (bool, error) {
		sb.mu.Lock()
		defer sb.mu.Unlock()

		if _, ok := sb.lookupUnsafe(path); ok {
			return false, nil
		}
		if err := sb.checkParentUnsafe(path); err != nil {
			return false, err
		}

		_, err := sb.createMetaUnsafe(ctx, path, true, perm|fs.ModeDir)
		return err == nil, err
	})
	if err != nil || !created {
		return false, err
	}

	sb.emit(vfs.Created, path, "")
	return true, nil
}

// Rename moves src and everything below it to dst. A node already present
// at dst is replaced.
func (sb *SQLiteBackend) Rename(ctx context.Context, src, dst string) (bool, error) {
	src, dst = data.Normalize(src), data.Normalize(dst)
	if src == dst {
		return false, nil
	}
	if src == "/" {
		return false, errors.Invalid(nil, "cannot rename root")
	}
	if data.HasPrefix(dst, src) {
		return false, errors.Invalid(nil, "cannot move '%s' below itself", src)
	}

	_, err := withDB(ctx, func() (struct{}, error) {
		sb.mu.Lock()
		defer sb.mu.Unlock()

		if _, ok := sb.lookupUnsafe(src); !ok {
			return struct{}{}, errors.NotFound(nil, src)
		}
		if err := sb.checkParentUnsafe(dst); err != nil {
			return struct{}{}, err
		}

		if _, ok := sb.lookupUnsafe(dst); ok {
			if err := sb.deleteTreeUnsafe(ctx, dst); err != nil {
				return struct{}{}, err
			}
		}

		return struct{}{}, sb.moveTreeUnsafe(ctx, src, dst)
	})
	if err != nil {
		return false, err
	}

	sb.log.Debug("Rename: moved %s to %s", src, dst)
	sb.emit(vfs.Renamed, src, dst)
	return true, nil
}

// moveTreeUnsafe rewrites the keys of src and its descendants to live below dst.
// MUST be called while holding the lock.
func (sb *SQLiteBackend) moveTreeUnsafe(ctx context.Context, src, dst string) error {
	keys := append([]string{src}, sb.descendantsUnsafe(src)...)
	moved := make(map[string]node, len(keys))

	tx, err := sb.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, key := range keys {
		n, _ := sb.keys.Get(key)
		target := dst + strings.TrimPrefix(key, src)

		if err := renameMeta(ctx, tx, n, target); err != nil {
			return err
		}
		moved[target] = n
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	for _, key := range keys {
		sb.keys.Delete(key)
	}
	for key, n := range moved {
		sb.keys.Set(key, n)
	}
	return nil
}

// SetAttributes stores MimeType as content type and Mode as permission bits.
// Other attributes are ignored.
func (sb *SQLiteBackend) SetAttributes(ctx context.Context, path string, attrs ...vfs.Attribute) error {
	path = data.Normalize(path)

	var mode *fs.FileMode
	if m, ok := vfs.Lookup[vfs.Mode](attrs); ok {
		perm := fs.FileMode(m).Perm()
		mode = &perm
	}

	var contentType *string
	if mimeType, ok := vfs.Lookup[vfs.MimeType](attrs); ok {
		s := string(mimeType)
		contentType = &s
	}

	_, err := withDB(ctx, func() (struct{}, error) {
		sb.mu.RLock()
		defer sb.mu.RUnlock()

		n, ok := sb.lookupUnsafe(path)
		if !ok {
			return struct{}{}, errors.NotFound(nil, path)
		}
		if path == "/" {
			return struct{}{}, nil
		}
		return struct{}{}, sb.updateMeta(ctx, n, mode, contentType)
	})
	return err
}

func (sb *SQLiteBackend) SetSize(ctx context.Context, path string, size int64) error {
	path = data.Normalize(path)
	if size < 0 {
		return errors.Invalid(nil, "negative length %d", size)
	}

	_, err := withDB(ctx, func() (struct{}, error) {
		sb.mu.Lock()
		defer sb.mu.Unlock()

		n, ok := sb.lookupUnsafe(path)
		if !ok {
			return struct{}{}, errors.NotFound(nil, path)
		}
		if n.dir {
			return struct{}{}, errors.IsDirectory(nil, path)
		}

		content, err := sb.readContent(ctx, n)
		if err != nil {
			return struct{}{}, err
		}

		resized := make([]byte, size)
		copy(resized, content)
		return struct{}{}, sb.writeContent(ctx, n, resized)
	})
	if err != nil {
		return err
	}

	sb.emit(vfs.Modified, path, "")
	return nil
}

func (sb *SQLiteBackend) Watch(ctx context.Context, path string, handler func(vfs.Event)) (vfs.Subscription, error) {
	return sb.hub.Subscribe(path, handler), nil
}
