package stream

import (
	"io"
	"sync"

	"github.com/mwantia/asyncvfs/data/errors"
)

// Buffer is growable in-memory storage that several Memory cursors may share.
type Buffer struct {
	mu   sync.RWMutex
	data []byte
}

func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

func (b *Buffer) Len() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return int64(len(b.data))
}

// Bytes returns a copy of the current content.
func (b *Buffer) Bytes() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

func (b *Buffer) readAt(p []byte, offset int64) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if offset >= int64(len(b.data)) {
		return 0
	}
	return copy(p, b.data[offset:])
}

func (b *Buffer) writeAt(p []byte, offset int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	end := offset + int64(len(p))
	b.growUnsafe(end)
	copy(b.data[offset:end], p)
}

func (b *Buffer) truncate(size int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if size <= int64(len(b.data)) {
		b.data = b.data[:size]
		return
	}
	b.growUnsafe(size)
}

// growUnsafe extends data to size with zero bytes.
// MUST be called while holding the lock.
func (b *Buffer) growUnsafe(size int64) {
	if size <= int64(len(b.data)) {
		return
	}

	if size > int64(cap(b.data)) {
		grown := make([]byte, len(b.data), max(size, int64(cap(b.data))*2))
		copy(grown, b.data)
		b.data = grown
	}

	clear(b.data[len(b.data):size])
	b.data = b.data[:size]
}

// Memory is an independent cursor over a Buffer.
type Memory struct {
	buf      *Buffer
	pos      int64
	closed   bool
	onChange func()
}

// NewMemory returns a cursor over a fresh buffer holding data.
func NewMemory(data []byte) *Memory {
	return &Memory{buf: NewBuffer(data)}
}

// NewCursor returns a cursor positioned at 0 over buf.
// onChange is called after every write or length change, and may be nil.
func NewCursor(buf *Buffer, onChange func()) *Memory {
	return &Memory{buf: buf, onChange: onChange}
}

func (m *Memory) Buffer() *Buffer {
	return m.buf
}

func (m *Memory) Read(p []byte) (int, error) {
	if m.closed {
		return 0, errors.Closed(nil, "memory")
	}
	if len(p) == 0 {
		return 0, nil
	}

	n := m.buf.readAt(p, m.pos)
	m.pos += int64(n)
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (m *Memory) Write(p []byte) (int, error) {
	if m.closed {
		return 0, errors.Closed(nil, "memory")
	}

	m.buf.writeAt(p, m.pos)
	m.pos += int64(len(p))
	m.changed()
	return len(p), nil
}

func (m *Memory) Seek(offset int64, whence int) (int64, error) {
	next, err := SeekOffset(m.pos, m.buf.Len(), offset, whence)
	if err != nil {
		return 0, err
	}

	m.pos = next
	return next, nil
}

func (m *Memory) Length() (int64, error) {
	return m.buf.Len(), nil
}

func (m *Memory) SetLength(size int64) error {
	if size < 0 {
		return errors.Invalid(nil, "negative length %d", size)
	}

	m.buf.truncate(size)
	m.changed()
	return nil
}

func (m *Memory) Close() error {
	m.closed = true
	return nil
}

func (m *Memory) changed() {
	if m.onChange != nil {
		m.onChange()
	}
}
