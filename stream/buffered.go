package stream

import (
	"io"
)

const DefaultBufferSize = 64 * 1024

// BufferedStream keeps one window of the base stream in memory, so small reads do not
// each reach the base. Unlike bufio it stays seekable: seeking inside the window is free.
type BufferedStream struct {
	base Stream
	size int

	window      []byte
	windowStart int64
	pos         int64
}

func Buffered(base Stream, size int) *BufferedStream {
	if size <= 0 {
		size = DefaultBufferSize
	}

	return &BufferedStream{
		base: base,
		size: size,
	}
}

func (b *BufferedStream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	if !b.inWindow(b.pos) {
		// Large reads bypass the window entirely.
		if len(p) >= b.size {
			return b.direct(p)
		}
		if err := b.fill(); err != nil {
			return 0, err
		}
		if !b.inWindow(b.pos) {
			return 0, io.EOF
		}
	}

	n := copy(p, b.window[b.pos-b.windowStart:])
	b.pos += int64(n)
	return n, nil
}

func (b *BufferedStream) Write(p []byte) (int, error) {
	b.invalidate()

	if err := SetPosition(b.base, b.pos); err != nil {
		return 0, err
	}

	n, err := b.base.Write(p)
	b.pos += int64(n)
	return n, err
}

func (b *BufferedStream) Seek(offset int64, whence int) (int64, error) {
	var size int64
	if whence == io.SeekEnd {
		var err error
		if size, err = b.base.Length(); err != nil {
			return 0, err
		}
	}

	next, err := SeekOffset(b.pos, size, offset, whence)
	if err != nil {
		return 0, err
	}

	b.pos = next
	return next, nil
}

func (b *BufferedStream) Length() (int64, error) {
	return b.base.Length()
}

func (b *BufferedStream) SetLength(size int64) error {
	b.invalidate()
	return b.base.SetLength(size)
}

func (b *BufferedStream) Close() error {
	b.invalidate()
	return b.base.Close()
}

func (b *BufferedStream) inWindow(pos int64) bool {
	return len(b.window) > 0 && pos >= b.windowStart && pos < b.windowStart+int64(len(b.window))
}

func (b *BufferedStream) invalidate() {
	b.window = b.window[:0]
}

func (b *BufferedStream) fill() error {
	if err := SetPosition(b.base, b.pos); err != nil {
		return err
	}

	if cap(b.window) < b.size {
		b.window = make([]byte, b.size)
	}
	b.window = b.window[:b.size]

	n, err := io.ReadFull(b.base, b.window)
	b.window = b.window[:n]
	b.windowStart = b.pos

	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return nil
	}
	return err
}

func (b *BufferedStream) direct(p []byte) (int, error) {
	if err := SetPosition(b.base, b.pos); err != nil {
		return 0, err
	}

	n, err := b.base.Read(p)
	b.pos += int64(n)
	return n, err
}
