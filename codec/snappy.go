// File: codec/snappy.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Snappy block codec writing into pooled buffers.

package codec

import (
	"fmt"

	"github.com/golang/snappy"
	"github.com/momentics/segpool/api"
)

// Snappy encodes and decodes snappy blocks. Safe for concurrent use if the
// pool is.
type Snappy struct {
	pool api.Pool[[]byte]
}

// NewSnappy returns a codec renting output buffers from p.
func NewSnappy(p api.Pool[[]byte]) *Snappy {
	return &Snappy{pool: p}
}

// Encode compresses src into a rented buffer.
func (c *Snappy) Encode(src []byte) ([]byte, error) {
	bound := snappy.MaxEncodedLen(len(src))
	if bound < 0 {
		return nil, fmt.Errorf("snappy encode %d bytes: %w", len(src), ErrTooLarge)
	}
	dst, err := c.pool.Rent(max(bound, 1))
	if err != nil {
		return nil, err
	}
	return snappy.Encode(dst, src), nil
}

// Decode decompresses src into a rented buffer of exactly the decoded length.
func (c *Snappy) Decode(src []byte) ([]byte, error) {
	n, err := snappy.DecodedLen(src)
	if err != nil {
		return nil, fmt.Errorf("snappy: %w: %w", ErrCorrupt, err)
	}
	if n > MaxBlockSize {
		return nil, fmt.Errorf("snappy block of %d bytes: %w", n, ErrTooLarge)
	}
	dst, err := c.pool.Rent(max(n, 1))
	if err != nil {
		return nil, err
	}
	out, err := snappy.Decode(dst, src)
	if err != nil {
		c.pool.Return(dst)
		return nil, fmt.Errorf("snappy: %w: %w", ErrCorrupt, err)
	}
	return out, nil
}

// Release gives a buffer returned by Encode or Decode back to the pool.
func (c *Snappy) Release(buf []byte) { c.pool.Return(buf) }
