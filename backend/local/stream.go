package local

import (
	"context"
	"os"
	"sync/atomic"

	vfserrors "github.com/mwantia/asyncvfs/data/errors"
)

type ioResult struct {
	n   int
	err error
}

// fileStream is an open file whose reads and writes run on the worker pool.
type fileStream struct {
	ctx    context.Context
	file   *os.File
	path   string
	closed atomic.Bool
}

func (s *fileStream) Read(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, vfserrors.Closed(nil, s.path)
	}

	result, err := blocking(s.ctx, func() (ioResult, error) {
		n, err := s.file.Read(p)
		return ioResult{n, err}, nil
	})
	if err != nil {
		return 0, err
	}
	return result.n, result.err
}

func (s *fileStream) Write(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, vfserrors.Closed(nil, s.path)
	}

	result, err := blocking(s.ctx, func() (ioResult, error) {
		n, err := s.file.Write(p)
		return ioResult{n, err}, nil
	})
	if err != nil {
		return 0, err
	}
	return result.n, mapError(result.err, s.path)
}

func (s *fileStream) Seek(offset int64, whence int) (int64, error) {
	if s.closed.Load() {
		return 0, vfserrors.Closed(nil, s.path)
	}
	return s.file.Seek(offset, whence)
}

func (s *fileStream) Length() (int64, error) {
	if s.closed.Load() {
		return 0, vfserrors.Closed(nil, s.path)
	}

	return blocking(s.ctx, func() (int64, error) {
		info, err := s.file.Stat()
		if err != nil {
			return 0, err
		}
		return info.Size(), nil
	})
}

func (s *fileStream) SetLength(size int64) error {
	if s.closed.Load() {
		return vfserrors.Closed(nil, s.path)
	}

	_, err := blocking(s.ctx, func() (struct{}, error) {
		return struct{}{}, s.file.Truncate(size)
	})
	return mapError(err, s.path)
}

func (s *fileStream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.file.Close()
}
