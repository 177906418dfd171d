// File: codec/buffer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Append-only byte buffer whose storage is rented and grown through a pool.

package codec

import (
	"io"

	"github.com/momentics/segpool/api"
)

// Buffer accumulates bytes in pooled storage. The zero value is not usable;
// create one with NewBuffer. Not safe for concurrent use.
type Buffer struct {
	pool api.Pool[[]byte]
	buf  []byte
	n    int
}

var _ io.Writer = (*Buffer)(nil)

// NewBuffer returns an empty buffer drawing storage from p. Nothing is rented
// until the first write.
func NewBuffer(p api.Pool[[]byte]) *Buffer {
	return &Buffer{pool: p}
}

// Grow ensures room for at least n more bytes.
func (b *Buffer) Grow(n int) error {
	need := b.n + n
	if need <= len(b.buf) {
		return nil
	}
	if b.buf == nil {
		buf, err := b.pool.Rent(need)
		if err != nil {
			return err
		}
		b.buf = buf
		return nil
	}
	// At least double.
	buf, err := b.pool.Enlarge(b.buf[:b.n], max(need, 2*len(b.buf)))
	if err != nil {
		return err
	}
	b.buf = buf[:cap(buf)]
	return nil
}

// Write appends p. It fails only when the pool cannot supply storage.
func (b *Buffer) Write(p []byte) (int, error) {
	if err := b.Grow(len(p)); err != nil {
		return 0, err
	}
	b.n += copy(b.buf[b.n:], p)
	return len(p), nil
}

// WriteByte appends c.
func (b *Buffer) WriteByte(c byte) error {
	if err := b.Grow(1); err != nil {
		return err
	}
	b.buf[b.n] = c
	b.n++
	return nil
}

// Bytes returns the content. Valid until the next write, Reset or Release.
func (b *Buffer) Bytes() []byte { return b.buf[:b.n] }

// Len returns the content length.
func (b *Buffer) Len() int { return b.n }

// Cap returns the rented capacity.
func (b *Buffer) Cap() int { return len(b.buf) }

// Reset empties the buffer but keeps its storage.
func (b *Buffer) Reset() { b.n = 0 }

// Release returns the storage to the pool and empties the buffer.
func (b *Buffer) Release() {
	if b.buf != nil {
		b.pool.Return(b.buf)
	}
	b.buf, b.n = nil, 0
}

// Detach hands the content to the caller, who must give it back with the
// pool's Return. The buffer is left empty.
func (b *Buffer) Detach() []byte {
	out := b.Bytes()
	b.buf, b.n = nil, 0
	return out
}
