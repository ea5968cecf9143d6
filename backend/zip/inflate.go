package zip

import (
	"context"
	"errors"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/mwantia/asyncvfs/async"
	vfserrors "github.com/mwantia/asyncvfs/data/errors"
	"github.com/mwantia/asyncvfs/stream"
)

const (
	inflateChunkSize = 1024
	// inflateReadAhead covers the compressed input of one decoder window even
	// for poorly compressed data.
	inflateReadAhead = 128 << 10
	inflateWindow    = 32 << 10
)

// errInputStarved is returned to the decoder when the prefetched input ran out
// before the end of the compressed data.
var errInputStarved = errors.New("zip: inflate input starved")

// inputBuffer hands the decoder compressed input that was read ahead by the
// caller. It never touches the underlying stream, so decoding can run on the
// worker pool while the stream itself may use the pool for its own reads.
type inputBuffer struct {
	data []byte
	off  int
	eof  bool
}

func (b *inputBuffer) Read(p []byte) (int, error) {
	if b.off == len(b.data) {
		return 0, b.drained()
	}

	n := copy(p, b.data[b.off:])
	b.off += n
	return n, nil
}

func (b *inputBuffer) ReadByte() (byte, error) {
	if b.off == len(b.data) {
		return 0, b.drained()
	}

	c := b.data[b.off]
	b.off++
	return c, nil
}

func (b *inputBuffer) drained() error {
	if b.eof {
		return io.EOF
	}
	return errInputStarved
}

func (b *inputBuffer) buffered() int {
	return len(b.data) - b.off
}

func (b *inputBuffer) reset() {
	b.data, b.off, b.eof = b.data[:0], 0, false
}

type inflateResult struct {
	n   int
	err error
}

// inflateStream decompresses a deflated entry. Compressed input is read ahead in
// chunks on the caller; only decoding runs on the worker pool, into a buffer the
// stream owns. It is read-only; seeking backwards restarts decompression from
// the beginning of the entry.
type inflateStream struct {
	stream.Unsupported

	ctx        context.Context
	path       string
	compressed *stream.SliceStream
	input      *inputBuffer
	inflater   io.ReadCloser
	readAhead  int

	out      []byte
	outStart int
	outEnd   int

	size     int64
	pos      int64
	checksum uint32
	expected uint32
}

func newInflateStream(ctx context.Context, compressed *stream.SliceStream, entry *Entry) *inflateStream {
	input := &inputBuffer{}

	return &inflateStream{
		Unsupported: stream.Unsupported{Name: "zip inflate"},
		ctx:         ctx,
		path:        entry.Path,
		compressed:  compressed,
		input:       input,
		inflater:    flate.NewReader(input),
		readAhead:   inflateReadAhead,
		out:         make([]byte, inflateWindow),
		size:        entry.UncompressedSize,
		expected:    entry.CRC32,
	}
}

func (s *inflateStream) Read(p []byte) (int, error) {
	if s.pos >= s.size {
		return 0, io.EOF
	}
	if remaining := s.size - s.pos; int64(len(p)) > remaining {
		p = p[:remaining]
	}

	if s.outStart == s.outEnd {
		if err := s.inflate(); err != nil {
			return 0, err
		}
	}

	n := copy(p, s.out[s.outStart:s.outEnd])
	s.outStart += n
	s.checksum = crc32.Update(s.checksum, crc32.IEEETable, p[:n])
	s.pos += int64(n)

	if s.pos >= s.size && s.checksum != s.expected {
		return n, vfserrors.InvalidFormat(nil, "checksum mismatch for '%s'", s.path)
	}
	return n, nil
}

// inflate refills the output buffer with at least one byte.
func (s *inflateStream) inflate() error {
	for {
		if err := s.prefetch(); err != nil {
			return err
		}

		result, err := async.RunBlockingWait(s.ctx, func(token *async.CancellationToken) (inflateResult, error) {
			if err := token.Check(); err != nil {
				return inflateResult{}, err
			}

			n, err := s.inflater.Read(s.out)
			return inflateResult{n: n, err: err}, nil
		})
		if err != nil {
			return err
		}

		s.outStart, s.outEnd = 0, result.n
		switch {
		case result.n > 0:
			// A decoder error resurfaces on the next call.
			return nil
		case errors.Is(result.err, errInputStarved):
			s.readAhead *= 2
			if err := s.restart(); err != nil {
				return err
			}
			if s.outStart < s.outEnd {
				return nil
			}
		case result.err == io.EOF, errors.Is(result.err, io.ErrUnexpectedEOF):
			return vfserrors.Truncated(io.ErrUnexpectedEOF, int(s.size), int(s.pos))
		case result.err != nil:
			return vfserrors.InvalidFormat(result.err, "deflate stream of '%s'", s.path)
		}
	}
}

// prefetch reads compressed chunks until readAhead bytes are buffered or the
// compressed data is exhausted.
func (s *inflateStream) prefetch() error {
	in := s.input
	if in.eof || in.buffered() >= s.readAhead {
		return nil
	}

	in.data = append(in.data[:0], in.data[in.off:]...)
	in.off = 0

	var chunk [inflateChunkSize]byte
	for !in.eof && len(in.data) < s.readAhead {
		n, err := s.compressed.Read(chunk[:])
		in.data = append(in.data, chunk[:n]...)

		switch {
		case err == io.EOF, err == nil && n == 0:
			in.eof = true
		case err != nil:
			return err
		}
	}
	return nil
}

// restart decodes again from the start of the entry up to the current position.
// The decoder cannot continue after it ran out of input.
func (s *inflateStream) restart() error {
	target, checksum := s.pos, s.checksum
	if err := s.reset(); err != nil {
		return err
	}

	for s.pos < target {
		if s.outStart == s.outEnd {
			if err := s.inflate(); err != nil {
				return err
			}
		}

		n := min(int64(s.outEnd-s.outStart), target-s.pos)
		s.outStart += int(n)
		s.pos += n
	}

	s.checksum = checksum
	return nil
}

func (s *inflateStream) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = s.pos + offset
	case io.SeekEnd:
		target = s.size + offset
	default:
		return 0, vfserrors.Invalid(nil, "invalid whence %d", whence)
	}
	if target < 0 {
		return 0, vfserrors.Invalid(nil, "negative position %d", target)
	}

	if target < s.pos {
		if err := s.reset(); err != nil {
			return 0, err
		}
	}

	if skip := min(target, s.size) - s.pos; skip > 0 {
		if _, err := io.CopyN(io.Discard, s, skip); err != nil {
			return s.pos, err
		}
	}

	s.pos = target
	return s.pos, nil
}

func (s *inflateStream) reset() error {
	if err := stream.SetPosition(s.compressed, 0); err != nil {
		return err
	}

	s.input.reset()
	s.outStart, s.outEnd = 0, 0
	s.pos, s.checksum = 0, 0
	return s.inflater.(flate.Resetter).Reset(s.input, nil)
}

func (s *inflateStream) Length() (int64, error) {
	return s.size, nil
}

func (s *inflateStream) Close() error {
	return s.inflater.Close()
}

// storedStream exposes the raw payload of a stored entry without write access.
type storedStream struct {
	*stream.SliceStream
}

func (s storedStream) Write(p []byte) (int, error) {
	return 0, vfserrors.Unsupported(nil, "write", "zip")
}
