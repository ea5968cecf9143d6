package s3

import (
	"context"
	"io"

	"github.com/mwantia/asyncvfs/stream"
)

// objectStream issues one ranged GET per read. The length is fixed at open time.
type objectStream struct {
	stream.Unsupported

	ctx   context.Context
	store ObjectStore
	key   string
	path  string
	size  int64
	pos   int64
}

func (s *objectStream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if s.pos >= s.size {
		return 0, io.EOF
	}

	want := min(int64(len(p)), s.size-s.pos)

	body, err := s.store.Get(s.ctx, s.key, s.pos, want)
	if err != nil {
		return 0, mapError(err, s.path)
	}
	defer body.Close()

	n, err := io.ReadFull(body, p[:want])
	s.pos += int64(n)

	if err == io.ErrUnexpectedEOF || err == io.EOF {
		if n == 0 {
			return 0, io.EOF
		}
		return n, nil
	}
	return n, mapError(err, s.path)
}

func (s *objectStream) Seek(offset int64, whence int) (int64, error) {
	next, err := stream.SeekOffset(s.pos, s.size, offset, whence)
	if err != nil {
		return 0, err
	}

	s.pos = next
	return next, nil
}

func (s *objectStream) Length() (int64, error) {
	return s.size, nil
}

func (s *objectStream) Close() error {
	return nil
}
