package sqlite

import (
	"context"

	"github.com/mwantia/asyncvfs/data/errors"
	"github.com/mwantia/asyncvfs/stream"
	"github.com/mwantia/asyncvfs/vfs"
)

// nodeStream works on a private copy of the file content and writes it back
// on Close when anything changed.
type nodeStream struct {
	*stream.Memory

	ctx      context.Context
	backend  *SQLiteBackend
	node     node
	path     string
	writable bool
	dirty    bool
	closed   bool
}

func (s *nodeStream) Write(p []byte) (int, error) {
	if !s.writable {
		return 0, errors.ReadOnly(nil, "write", s.path)
	}
	return s.Memory.Write(p)
}

func (s *nodeStream) SetLength(size int64) error {
	if !s.writable {
		return errors.ReadOnly(nil, "setLength", s.path)
	}
	return s.Memory.SetLength(size)
}

func (s *nodeStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.Memory.Close()

	if !s.dirty {
		return nil
	}

	content := s.Buffer().Bytes()
	_, err := withDB(s.ctx, func() (struct{}, error) {
		return struct{}{}, s.backend.writeContent(s.ctx, s.node, content)
	})
	if err != nil {
		return err
	}

	s.backend.log.Debug("Close: flushed %d bytes to %s", len(content), s.path)
	s.backend.emit(vfs.Modified, s.path, "")
	return nil
}
