package s3

import (
	"context"
	"io"
	"iter"

	"github.com/minio/minio-go/v7"
	"github.com/mwantia/asyncvfs/async"
)

// ObjectStore is the subset of an S3 bucket the backend works with.
// Keys never start with a slash; directory markers end with one.
type ObjectStore interface {
	Stat(ctx context.Context, key string) (minio.ObjectInfo, error)

	// Get returns length bytes starting at offset, or everything from offset when length is negative.
	Get(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error)

	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, key string) error

	// List yields the objects below prefix. Without recursive, deeper levels are
	// collapsed into common prefixes ending with a slash.
	List(ctx context.Context, prefix string, recursive bool) iter.Seq2[minio.ObjectInfo, error]
}

type minioStore struct {
	client *minio.Client
	bucket string
}

// suspend runs call on its own goroutine while the caller is parked on the scheduler.
func suspend[T any](ctx context.Context, call func() (T, error)) (T, error) {
	return async.Suspend(ctx, func(c *async.Continuation[T]) {
		go func() {
			value, err := call()
			if err != nil {
				c.ResumeWithError(err)
				return
			}
			c.Resume(value)
		}()
	})
}

func (s *minioStore) Stat(ctx context.Context, key string) (minio.ObjectInfo, error) {
	return suspend(ctx, func() (minio.ObjectInfo, error) {
		return s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	})
}

func (s *minioStore) Get(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	opts := minio.GetObjectOptions{}

	switch {
	case length > 0:
		if err := opts.SetRange(offset, offset+length-1); err != nil {
			return nil, err
		}
	case offset > 0:
		if err := opts.SetRange(offset, 0); err != nil {
			return nil, err
		}
	}

	// GetObject is lazy; the request is sent on the first read.
	return s.client.GetObject(ctx, s.bucket, key, opts)
}

func (s *minioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := suspend(ctx, func() (minio.UploadInfo, error) {
		return s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
			ContentType: contentType,
		})
	})
	return err
}

func (s *minioStore) Remove(ctx context.Context, key string) error {
	_, err := suspend(ctx, func() (struct{}, error) {
		return struct{}{}, s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	})
	return err
}

func (s *minioStore) List(ctx context.Context, prefix string, recursive bool) iter.Seq2[minio.ObjectInfo, error] {
	return func(yield func(minio.ObjectInfo, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
			Prefix:    prefix,
			Recursive: recursive,
		})

		for object := range objects {
			if !yield(object, object.Err) {
				return
			}
		}
	}
}
