package local

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/mwantia/asyncvfs/data"
	vfserrors "github.com/mwantia/asyncvfs/data/errors"
	"github.com/mwantia/asyncvfs/stream"
	"github.com/mwantia/asyncvfs/vfs"
)

func (lb *LocalBackend) Open(ctx context.Context, path string, mode data.OpenMode) (stream.Stream, error) {
	path = data.Normalize(path)
	fullPath := lb.resolvePath(path)

	flags := os.O_RDONLY
	if mode.CanWrite() {
		flags = os.O_RDWR
	}
	if mode.HasCreate() {
		flags |= os.O_CREATE
	}
	if mode.HasTruncate() {
		flags |= os.O_TRUNC
	}

	lb.log.Debug("Open: opening %s (mode=%s)", fullPath, mode)

	file, err := openFile(ctx, func() (*os.File, error) {
		file, err := os.OpenFile(fullPath, flags, 0o644)
		if err != nil {
			return nil, err
		}

		info, err := file.Stat()
		if err != nil {
			file.Close()
			return nil, err
		}
		if info.IsDir() {
			file.Close()
			return nil, vfserrors.IsDirectory(nil, path)
		}

		if mode.HasAppend() {
			if _, err := file.Seek(0, io.SeekEnd); err != nil {
				file.Close()
				return nil, err
			}
		}
		return file, nil
	})
	if err != nil {
		return nil, mapError(err, path)
	}

	return &fileStream{
		ctx:  ctx,
		file: file,
		path: path,
	}, nil
}

// Stat reports a missing path as non-existent instead of failing.
func (lb *LocalBackend) Stat(ctx context.Context, path string) (*vfs.Stat, error) {
	path = data.Normalize(path)
	file := vfs.NewFile(lb, path)

	info, err := blocking(ctx, func() (fs.FileInfo, error) {
		return os.Stat(lb.resolvePath(path))
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return vfs.NotExists(file), nil
		}
		return nil, mapError(err, path)
	}

	if info.IsDir() {
		return vfs.NewDirectoryStat(file, info.ModTime()), nil
	}
	return vfs.NewFileStat(file, info.Size(), info.ModTime()), nil
}

// List checks the directory right away and reads its entries on the first Next.
func (lb *LocalBackend) List(ctx context.Context, path string) (vfs.Iterator, error) {
	path = data.Normalize(path)
	fullPath := lb.resolvePath(path)

	info, err := blocking(ctx, func() (fs.FileInfo, error) {
		return os.Stat(fullPath)
	})
	if err != nil {
		return nil, mapError(err, path)
	}
	if !info.IsDir() {
		return nil, vfserrors.NotDirectory(nil, path)
	}

	return vfs.LazyIterator(func(ctx context.Context) ([]vfs.File, error) {
		entries, err := blocking(ctx, func() ([]os.DirEntry, error) {
			return os.ReadDir(fullPath)
		})
		if err != nil {
			return nil, mapError(err, path)
		}

		files := make([]vfs.File, 0, len(entries))
		for _, entry := range entries {
			files = append(files, vfs.NewFile(lb, data.Combine(path, entry.Name())))
		}
		return files, nil
	}), nil
}

func (lb *LocalBackend) Put(ctx context.Context, path string, content stream.Stream, attrs ...vfs.Attribute) error {
	if err := vfs.PutByOpen(ctx, lb, path, content); err != nil {
		return err
	}

	if len(attrs) > 0 {
		return lb.SetAttributes(ctx, path, attrs...)
	}
	return nil
}

// Delete removes files, and directories together with their content.
func (lb *LocalBackend) Delete(ctx context.Context, path string) (bool, error) {
	path = data.Normalize(path)
	if path == "/" {
		return false, nil
	}
	fullPath := lb.resolvePath(path)

	return blocking(ctx, func() (bool, error) {
		info, err := os.Lstat(fullPath)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return false, nil
			}
			return false, mapError(err, path)
		}

		if info.IsDir() {
			err = os.RemoveAll(fullPath)
		} else {
			err = os.Remove(fullPath)
		}
		if err != nil {
			return false, mapError(err, path)
		}

		lb.log.Debug("Delete: removed %s", fullPath)
		return true, nil
	})
}

// Mkdir uses the Mode attribute as permission when given.
func (lb *LocalBackend) Mkdir(ctx context.Context, path string, attrs ...vfs.Attribute) (bool, error) {
	path = data.Normalize(path)
	if path == "/" {
		return false, nil
	}

	perm := fs.FileMode(0o755)
	if mode, ok := vfs.Lookup[vfs.Mode](attrs); ok {
		perm = fs.FileMode(mode).Perm()
	}

	return blocking(ctx, func() (bool, error) {
		err := os.Mkdir(lb.resolvePath(path), perm)
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		if err != nil {
			return false, mapError(err, path)
		}
		return true, nil
	})
}

func (lb *LocalBackend) Rename(ctx context.Context, src, dst string) (bool, error) {
	src, dst = data.Normalize(src), data.Normalize(dst)
	if src == dst {
		return false, nil
	}
	if src == "/" {
		return false, vfserrors.Invalid(nil, "cannot rename root")
	}

	return blocking(ctx, func() (bool, error) {
		if err := os.Rename(lb.resolvePath(src), lb.resolvePath(dst)); err != nil {
			return false, mapError(err, src)
		}
		return true, nil
	})
}

// SetAttributes applies a Mode attribute as file permission. Other attributes
// have nowhere to be stored on disk and are ignored.
func (lb *LocalBackend) SetAttributes(ctx context.Context, path string, attrs ...vfs.Attribute) error {
	path = data.Normalize(path)

	mode, ok := vfs.Lookup[vfs.Mode](attrs)
	if !ok {
		return nil
	}

	_, err := blocking(ctx, func() (struct{}, error) {
		return struct{}{}, os.Chmod(lb.resolvePath(path), fs.FileMode(mode).Perm())
	})
	return mapError(err, path)
}

func (lb *LocalBackend) SetSize(ctx context.Context, path string, size int64) error {
	path = data.Normalize(path)

	_, err := blocking(ctx, func() (struct{}, error) {
		return struct{}{}, os.Truncate(lb.resolvePath(path), size)
	})
	return mapError(err, path)
}
