// File: api/pool.go
// Author: momentics <momentics@gmail.com>
//
// Defines abstract pooling APIs: size-classed renting of reusable buffers.

package api

// Pool rents buffers of at least a requested size and takes them back for reuse.
// B is the buffer handle: []T for managed pools, a native buffer for pools
// backed by memory outside the Go heap.
//
// Ownership of a rented buffer belongs to the caller until Return. Holding a
// reference after Return, or returning the same buffer twice, is a caller bug
// the pool cannot detect.
type Pool[B any] interface {
	// Rent returns a buffer holding at least minSize elements.
	Rent(minSize int) (B, error)

	// Return gives buf back to the pool. Buffers that match no size class are
	// dropped (or freed, for native memory).
	Return(buf B)

	// Enlarge rents a buffer of at least newMinSize, copies buf into it and
	// returns buf to the pool.
	Enlarge(buf B, newMinSize int) (B, error)

	// AllocationCount reports true misses: fresh memory requests, not reuses.
	AllocationCount() uint64

	// Stats exposes accounting for observability.
	Stats() PoolStats
}

// Disposer is implemented by pools that own memory needing explicit release.
type Disposer interface {
	Dispose() error
}

// PoolStats aggregates allocation/reuse counters of a pool.
type PoolStats struct {
	MaxPoolableSize  int
	Allocations      uint64
	LargeAllocations uint64
	Rents            uint64
	Returns          uint64
	Dropped          uint64
	SizeMismatches   uint64
	LostRaces        uint64
	PatchedHoles     uint64
	DiscardedBuckets uint64
	LateReturns      uint64
	OutstandingBytes int64
	Disposed         bool
	Classes          []ClassStats
}

// ClassStats describes one materialized size-class bucket.
type ClassStats struct {
	Index       int
	BufferSize  int
	Capacity    int
	Idle        int
	Allocations uint64
}
