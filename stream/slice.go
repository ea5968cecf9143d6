package stream

import (
	"io"

	"github.com/mwantia/asyncvfs/data/errors"
)

// SliceStream is a window of (start, length) over a base stream with its own position.
// Each operation seeks the base and restores its position afterwards, so one base may
// back several slices as long as their operations are not interleaved concurrently.
type SliceStream struct {
	base   Stream
	start  int64
	length int64
	pos    int64
}

// Slice returns a view over base starting at start. A negative length extends the
// window to the end of base, measured on every access. Slicing a slice collapses to
// a single window over the innermost base stream.
func Slice(base Stream, start, length int64) (*SliceStream, error) {
	if start < 0 {
		return nil, errors.Invalid(nil, "negative slice start %d", start)
	}

	if parent, ok := base.(*SliceStream); ok {
		if parent.length >= 0 {
			available := max(parent.length-start, 0)
			if length < 0 || length > available {
				length = available
			}
		}

		return &SliceStream{
			base:   parent.base,
			start:  parent.start + start,
			length: length,
		}, nil
	}

	return &SliceStream{
		base:   base,
		start:  start,
		length: length,
	}, nil
}

// Base returns the innermost stream and the absolute window start.
func (s *SliceStream) Base() (Stream, int64) {
	return s.base, s.start
}

func (s *SliceStream) Length() (int64, error) {
	if s.length >= 0 {
		return s.length, nil
	}

	total, err := s.base.Length()
	if err != nil {
		return 0, err
	}
	return max(total-s.start, 0), nil
}

func (s *SliceStream) Read(p []byte) (int, error) {
	size, err := s.Length()
	if err != nil {
		return 0, err
	}

	remaining := size - s.pos
	if remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}

	var n int
	err = s.around(func() error {
		var readErr error
		n, readErr = s.base.Read(p)
		return readErr
	})

	s.pos += int64(n)
	if n == 0 && err == nil {
		return 0, io.EOF
	}
	return n, err
}

// Write stores p at the slice position. Writes never extend a bounded window;
// the part that does not fit is dropped and io.ErrShortWrite is returned.
func (s *SliceStream) Write(p []byte) (int, error) {
	short := false
	if s.length >= 0 {
		remaining := max(s.length-s.pos, 0)
		if int64(len(p)) > remaining {
			p = p[:remaining]
			short = true
		}
	}

	var n int
	err := s.around(func() error {
		var writeErr error
		n, writeErr = s.base.Write(p)
		return writeErr
	})

	s.pos += int64(n)
	if err == nil && short {
		err = io.ErrShortWrite
	}
	return n, err
}

func (s *SliceStream) Seek(offset int64, whence int) (int64, error) {
	var size int64
	if whence == io.SeekEnd {
		var err error
		if size, err = s.Length(); err != nil {
			return 0, err
		}
	}

	next, err := SeekOffset(s.pos, size, offset, whence)
	if err != nil {
		return 0, err
	}

	s.pos = next
	return next, nil
}

func (s *SliceStream) SetLength(size int64) error {
	return errors.Unsupported(nil, "setLength", "slice")
}

// Close releases the view only. The base stream stays open for its owner.
func (s *SliceStream) Close() error {
	return nil
}

// around positions the base at the slice cursor, runs op and restores the base position.
func (s *SliceStream) around(op func() error) error {
	saved, err := Position(s.base)
	if err != nil {
		return err
	}

	if err := SetPosition(s.base, s.start+s.pos); err != nil {
		return err
	}

	opErr := op()
	if err := SetPosition(s.base, saved); err != nil && opErr == nil {
		return err
	}

	if opErr == io.EOF {
		return nil
	}
	return opErr
}
