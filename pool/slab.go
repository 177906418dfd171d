// File: pool/slab.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Unmanaged slab: one contiguous native allocation sliced into fixed windows.

package pool

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/momentics/segpool/api"
)

// Origin records where a native buffer's memory came from, which decides
// what Return does with it once it no longer fits in its bucket.
type Origin uint8

const (
	// OriginSlab buffers are windows of a bucket's slab; freed with the slab.
	OriginSlab Origin = iota + 1
	// OriginStandalone buffers own a private allocation and are freed on drop.
	OriginStandalone
)

// String returns a readable origin name.
func (o Origin) String() string {
	switch o {
	case OriginSlab:
		return "slab"
	case OriginStandalone:
		return "standalone"
	default:
		return fmt.Sprintf("Origin(%d)", uint8(o))
	}
}

// NativeBuffer is a byte buffer living outside the Go heap. It must be given
// back to the pool it came from and must not be touched after that pool is
// disposed.
type NativeBuffer struct {
	data   []byte
	origin Origin
	slab   *unmanagedSlab
}

// Bytes returns the full buffer.
func (b *NativeBuffer) Bytes() []byte { return b.data }

// Len returns the buffer length.
func (b *NativeBuffer) Len() int { return len(b.data) }

// Origin reports whether the buffer is a slab window or a standalone allocation.
func (b *NativeBuffer) Origin() Origin { return b.origin }

func nativeLen(b *NativeBuffer) int { return len(b.data) }

type unmanagedSlab struct {
	mem        *nativeMemory
	block      []byte
	bufferSize int
	capacity   int
	freed      atomic.Bool
	onFree     func(SlabInfo)
}

func newUnmanagedSlab(mem *nativeMemory, bufferSize, capacity int) (*unmanagedSlab, error) {
	if bufferSize <= 0 || capacity <= 0 || bufferSize > math.MaxInt/capacity {
		return nil, api.ErrInvalidArgument.
			WithContext("bufferSize", bufferSize).
			WithContext("capacity", capacity)
	}
	block, err := mem.alloc(bufferSize * capacity)
	if err != nil {
		return nil, fmt.Errorf("allocate slab: %w", err)
	}
	return &unmanagedSlab{
		mem:        mem,
		block:      block,
		bufferSize: bufferSize,
		capacity:   capacity,
	}, nil
}

func (s *unmanagedSlab) info() SlabInfo {
	return SlabInfo{BufferSize: s.bufferSize, Capacity: s.capacity, Bytes: len(s.block)}
}

// windows carves the block into capacity buffers. Each window is capped so
// appends cannot spill into its neighbour.
func (s *unmanagedSlab) windows() []*NativeBuffer {
	out := make([]*NativeBuffer, s.capacity)
	for i := range out {
		lo, hi := i*s.bufferSize, (i+1)*s.bufferSize
		out[i] = &NativeBuffer{
			data:   s.block[lo:hi:hi],
			origin: OriginSlab,
			slab:   s,
		}
	}
	return out
}

// free releases the block. Only the first call does anything.
func (s *unmanagedSlab) free() error {
	if !s.freed.CompareAndSwap(false, true) {
		return nil
	}
	if err := s.mem.free(s.block); err != nil {
		return err
	}
	if s.onFree != nil {
		s.onFree(s.info())
	}
	return nil
}
