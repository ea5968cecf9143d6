// Package stream provides seekable byte cursors over backend resources.
package stream

import (
	"encoding/binary"
	"io"

	"github.com/mwantia/asyncvfs/data/errors"
)

// Stream is a cursor over a resource. Operations a stream cannot perform
// fail with an unsupported error instead of doing nothing.
// Streams keep the context they were opened with for their blocking calls.
type Stream interface {
	io.Reader
	io.Writer
	io.Seeker
	io.Closer

	// Length returns the total size of the underlying resource.
	Length() (int64, error)

	// SetLength truncates or extends the underlying resource.
	SetLength(size int64) error
}

// Unsupported implements every Stream operation by failing.
// Concrete streams embed it and override what they support.
type Unsupported struct {
	Name string
}

func (u Unsupported) Read(p []byte) (int, error) {
	return 0, errors.Unsupported(nil, "read", u.Name)
}

func (u Unsupported) Write(p []byte) (int, error) {
	return 0, errors.Unsupported(nil, "write", u.Name)
}

func (u Unsupported) Seek(offset int64, whence int) (int64, error) {
	return 0, errors.Unsupported(nil, "seek", u.Name)
}

func (u Unsupported) Close() error {
	return nil
}

func (u Unsupported) Length() (int64, error) {
	return 0, errors.Unsupported(nil, "length", u.Name)
}

func (u Unsupported) SetLength(size int64) error {
	return errors.Unsupported(nil, "setLength", u.Name)
}

func Position(s io.Seeker) (int64, error) {
	return s.Seek(0, io.SeekCurrent)
}

func SetPosition(s io.Seeker, position int64) error {
	_, err := s.Seek(position, io.SeekStart)
	return err
}

// Available returns the number of bytes between the position and the end of s.
func Available(s Stream) (int64, error) {
	length, err := s.Length()
	if err != nil {
		return 0, err
	}

	position, err := Position(s)
	if err != nil {
		return 0, err
	}

	return max(length-position, 0), nil
}

// ReadExact fills p completely. A read returning no bytes before p is full
// fails with a truncated error, so an exhausted stream is never mistaken for success.
func ReadExact(r io.Reader, p []byte) error {
	total := 0
	for total < len(p) {
		n, err := r.Read(p[total:])
		total += n

		if err != nil && err != io.EOF {
			return err
		}
		if n == 0 {
			return errors.Truncated(err, len(p), total)
		}
	}

	return nil
}

// ReadBytes reads exactly n bytes.
func ReadBytes(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := ReadExact(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadAll reads from the current position until the end.
func ReadAll(r io.Reader) ([]byte, error) {
	if s, ok := r.(Stream); ok {
		if available, err := Available(s); err == nil {
			buf := make([]byte, available)
			if err := ReadExact(s, buf); err != nil {
				return nil, err
			}
			return buf, nil
		}
	}

	return io.ReadAll(r)
}

// Copy transfers src into dst and returns the number of bytes written.
func Copy(dst io.Writer, src io.Reader) (int64, error) {
	return io.CopyBuffer(dst, src, make([]byte, 64*1024))
}

func ReadU8(r io.Reader) (uint8, error) {
	b, err := ReadBytes(r, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func ReadU16LE(r io.Reader) (uint16, error) {
	b, err := ReadBytes(r, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func ReadU32LE(r io.Reader) (uint32, error) {
	b, err := ReadBytes(r, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func ReadS32LE(r io.Reader) (int32, error) {
	v, err := ReadU32LE(r)
	return int32(v), err
}

func ReadU64LE(r io.Reader) (uint64, error) {
	b, err := ReadBytes(r, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// SeekOffset resolves a Seek request against the current position and size.
func SeekOffset(current, size, offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = current + offset
	case io.SeekEnd:
		next = size + offset
	default:
		return 0, errors.Invalid(nil, "invalid whence %d", whence)
	}

	if next < 0 {
		return 0, errors.Invalid(nil, "negative position %d", next)
	}
	return next, nil
}
