package s3

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/mwantia/asyncvfs/data"
	"github.com/mwantia/asyncvfs/data/errors"
	"github.com/mwantia/asyncvfs/stream"
	"github.com/mwantia/asyncvfs/vfs"
)

// Open supports reading only; content is replaced as a whole through Put.
func (sb *S3Backend) Open(ctx context.Context, path string, mode data.OpenMode) (stream.Stream, error) {
	path = data.Normalize(path)
	if mode.CanWrite() {
		return nil, errors.Unsupported(nil, "open for writing", sb.Name())
	}

	stat, err := sb.Stat(ctx, path)
	if err != nil {
		return nil, err
	}
	if !stat.Exists {
		return nil, errors.NotFound(nil, path)
	}
	if stat.IsDirectory {
		return nil, errors.IsDirectory(nil, path)
	}

	sb.log.Debug("Open: opening %s (size=%d)", path, stat.Size)

	return stream.Buffered(&objectStream{
		ctx:   ctx,
		store: sb.store,
		key:   objectKey(path),
		path:  path,
		size:  stat.Size,
	}, sb.bufferSize), nil
}

// Stat resolves path as object, then as directory marker, then as a non-empty prefix.
func (sb *S3Backend) Stat(ctx context.Context, path string) (*vfs.Stat, error) {
	path = data.Normalize(path)
	file := vfs.NewFile(sb, path)

	if path == "/" {
		return vfs.NewDirectoryStat(file, time.Time{}), nil
	}

	info, err := sb.store.Stat(ctx, objectKey(path))
	if err == nil {
		stat := vfs.NewFileStat(file, info.Size, info.LastModified)
		stat.ContentType = data.ContentType(info.ContentType)
		return stat, nil
	}
	if !isNoSuchKey(err) {
		return nil, err
	}

	marker, err := sb.store.Stat(ctx, prefixKey(path))
	if err == nil {
		return vfs.NewDirectoryStat(file, marker.LastModified), nil
	}
	if !isNoSuchKey(err) {
		return nil, err
	}

	for _, err := range sb.store.List(ctx, prefixKey(path), false) {
		if err != nil {
			return nil, err
		}
		return vfs.NewDirectoryStat(file, time.Time{}), nil
	}

	return vfs.NotExists(file), nil
}

func (sb *S3Backend) List(ctx context.Context, path string) (vfs.Iterator, error) {
	path = data.Normalize(path)

	stat, err := sb.Stat(ctx, path)
	if err != nil {
		return nil, err
	}
	if !stat.Exists {
		return nil, errors.NotFound(nil, path)
	}
	if !stat.IsDirectory {
		return nil, errors.NotDirectory(nil, path)
	}

	prefix := prefixKey(path)

	return vfs.LazyIterator(func(ctx context.Context) ([]vfs.File, error) {
		var files []vfs.File
		for object, err := range sb.store.List(ctx, prefix, false) {
			if err != nil {
				return nil, err
			}

			// Skip the directory marker itself
			name := strings.TrimSuffix(strings.TrimPrefix(object.Key, prefix), "/")
			if name == "" {
				continue
			}
			files = append(files, vfs.NewFile(sb, data.Combine(path, name)))
		}
		return files, nil
	}), nil
}

// Put uploads the remaining content of the stream as a single object.
func (sb *S3Backend) Put(ctx context.Context, path string, content stream.Stream, attrs ...vfs.Attribute) error {
	path = data.Normalize(path)
	if path == "/" {
		return errors.IsDirectory(nil, path)
	}

	size, err := stream.Available(content)
	if err != nil {
		size = -1
	}

	contentType := ""
	if mimeType, ok := vfs.Lookup[vfs.MimeType](attrs); ok {
		contentType = string(mimeType)
	}

	sb.log.Debug("Put: uploading %s (size=%d)", path, size)
	return mapError(sb.store.Put(ctx, objectKey(path), content, size, contentType), path)
}

// Delete removes the object, or for directories the marker and every object below it.
func (sb *S3Backend) Delete(ctx context.Context, path string) (bool, error) {
	path = data.Normalize(path)
	if path == "/" {
		return false, nil
	}

	stat, err := sb.Stat(ctx, path)
	if err != nil {
		return false, err
	}
	if !stat.Exists {
		return false, nil
	}

	if !stat.IsDirectory {
		return true, mapError(sb.store.Remove(ctx, objectKey(path)), path)
	}

	var keys []string
	for object, err := range sb.store.List(ctx, prefixKey(path), true) {
		if err != nil {
			return false, err
		}
		keys = append(keys, object.Key)
	}

	errs := data.Errors{}
	for _, key := range keys {
		errs.Add(sb.store.Remove(ctx, key))
	}
	if err := sb.store.Remove(ctx, prefixKey(path)); err != nil && !isNoSuchKey(err) {
		errs.Add(err)
	}

	sb.log.Debug("Delete: removed %s with %d objects", path, len(keys))
	return true, errs.Errors()
}

// Mkdir writes an empty directory marker object.
func (sb *S3Backend) Mkdir(ctx context.Context, path string, attrs ...vfs.Attribute) (bool, error) {
	path = data.Normalize(path)
	if path == "/" {
		return false, nil
	}

	stat, err := sb.Stat(ctx, path)
	if err != nil {
		return false, err
	}
	if stat.Exists {
		return false, nil
	}

	err = sb.store.Put(ctx, prefixKey(path), bytes.NewReader(nil), 0, directoryContentType)
	if err != nil {
		return false, err
	}
	return true, nil
}

// SetSize downloads, resizes and uploads the whole object again.
func (sb *S3Backend) SetSize(ctx context.Context, path string, size int64) error {
	path = data.Normalize(path)
	if size < 0 {
		return errors.Invalid(nil, "negative length %d", size)
	}

	info, err := sb.store.Stat(ctx, objectKey(path))
	if err != nil {
		return mapError(err, path)
	}
	if info.Size == size {
		return nil
	}

	resized := make([]byte, size)
	if info.Size > 0 && size > 0 {
		body, err := sb.store.Get(ctx, objectKey(path), 0, min(size, info.Size))
		if err != nil {
			return mapError(err, path)
		}
		_, err = io.ReadFull(body, resized[:min(size, info.Size)])
		body.Close()
		if err != nil {
			return err
		}
	}

	return mapError(sb.store.Put(ctx, objectKey(path), bytes.NewReader(resized), size, info.ContentType), path)
}
