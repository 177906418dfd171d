// File: codec/lz4.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// LZ4 block codec with pooled output buffers and pooled hash tables.

package codec

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/momentics/segpool/api"
	"github.com/momentics/segpool/pool"
	"github.com/pierrec/lz4"
	"go.uber.org/zap"
)

const (
	// hashTableSize is the table length lz4.CompressBlock requires.
	hashTableSize = 1 << 16
	// Shorter inputs are stored raw.
	minCompressLen = 32
)

// LZ4 encodes blocks as a header followed by either the LZ4 payload or, for
// input that does not shrink, the raw bytes. Safe for concurrent use if the
// pool is.
type LZ4 struct {
	pool   api.Pool[[]byte]
	tables *pool.ManagedPool[int]
}

// NewLZ4 returns a codec renting output buffers from p. Hash tables come from
// a private pool holding one idle table per P.
func NewLZ4(p api.Pool[[]byte], logger *zap.Logger) (*LZ4, error) {
	tables, err := pool.NewManagedPool[int](
		pool.WithMaxPoolableSize(hashTableSize),
		pool.WithBucketCapacity(runtime.GOMAXPROCS(0)),
		pool.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("lz4 hash table pool: %w", err)
	}
	return &LZ4{pool: p, tables: tables}, nil
}

// Encode compresses src into a rented buffer.
func (c *LZ4) Encode(src []byte) ([]byte, error) {
	if len(src) > MaxBlockSize {
		return nil, fmt.Errorf("lz4 encode %d bytes: %w", len(src), ErrTooLarge)
	}
	dst, err := c.pool.Rent(maxHeaderLen + len(src))
	if err != nil {
		return nil, err
	}
	if len(src) < minCompressLen {
		h := putHeader(dst, methodRaw, len(src))
		return dst[:h+copy(dst[h:], src)], nil
	}
	table, err := c.tables.Rent(hashTableSize)
	if err != nil {
		c.pool.Return(dst)
		return nil, err
	}
	clear(table)
	h := putHeader(dst, methodLZ4, len(src))
	// Compressed output is kept only when it is shorter than src.
	n, err := lz4.CompressBlock(src, dst[h:h+len(src)-1], table)
	c.tables.Return(table)
	if err != nil && !errors.Is(err, lz4.ErrInvalidSourceShortBuffer) {
		c.pool.Return(dst)
		return nil, fmt.Errorf("lz4 encode: %w", err)
	}
	if err != nil || n == 0 {
		h = putHeader(dst, methodRaw, len(src))
		n = copy(dst[h:], src)
	}
	return dst[:h+n], nil
}

// Decode decompresses a block produced by Encode into a rented buffer of
// exactly the decoded length.
func (c *LZ4) Decode(src []byte) ([]byte, error) {
	method, size, h, err := readHeader(src)
	if err != nil {
		return nil, err
	}
	payload := src[h:]
	dst, err := c.pool.Rent(max(size, 1))
	if err != nil {
		return nil, err
	}
	switch method {
	case methodRaw:
		if len(payload) != size {
			c.pool.Return(dst)
			return nil, fmt.Errorf("raw block: %d bytes for declared %d: %w", len(payload), size, ErrCorrupt)
		}
		copy(dst, payload)
	case methodLZ4:
		n, err := lz4.UncompressBlock(payload, dst[:size])
		if err != nil || n != size {
			c.pool.Return(dst)
			return nil, fmt.Errorf("lz4 block: %w: %v", ErrCorrupt, err)
		}
	default:
		c.pool.Return(dst)
		return nil, fmt.Errorf("block method %d: %w", method, ErrCorrupt)
	}
	return dst[:size], nil
}

// Release gives a buffer returned by Encode or Decode back to the pool.
func (c *LZ4) Release(buf []byte) { c.pool.Return(buf) }

// HashTableStats exposes the hash table pool, e.g. for metrics.
func (c *LZ4) HashTableStats() api.PoolStats { return c.tables.Stats() }
