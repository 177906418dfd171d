// File: pool/managed.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Size-classed pool of garbage-collected buffers.

package pool

import (
	"fmt"
	"sync/atomic"

	"github.com/momentics/segpool/api"
	"go.uber.org/zap"
)

// ManagedPool rents []T buffers from power-of-two size classes. Requests above
// the configured ceiling are allocated directly and never retained.
//
// Return locates the class from cap(buf), so a caller may reslice a rented
// buffer (buf[:n]) and still return it.
type ManagedPool[T any] struct {
	maxPoolableSize int
	strategy        Strategy
	table           *bucketTable[[]T]
	logger          *zap.Logger

	large      atomic.Uint64
	rents      atomic.Uint64
	returns    atomic.Uint64
	dropped    atomic.Uint64
	mismatches atomic.Uint64
}

var _ api.Pool[[]byte] = (*ManagedPool[byte])(nil)

// NewManagedPool creates a managed pool. Defaults: DefaultMaxPoolableSize,
// DefaultBucketCapacity, StrategyWaitFree.
func NewManagedPool[T any](opts ...Option) (*ManagedPool[T], error) {
	cfg, err := newConfig(DefaultBucketCapacity, opts)
	if err != nil {
		return nil, fmt.Errorf("new managed pool: %w", err)
	}
	return newManagedPool[T](cfg), nil
}

func newManagedPool[T any](cfg config) *ManagedPool[T] {
	p := &ManagedPool[T]{
		maxPoolableSize: cfg.maxPoolableSize,
		strategy:        cfg.strategy,
		logger:          cfg.logger,
	}
	capacity := cfg.bucketCapacity
	p.table = newBucketTable(NumClasses(cfg.maxPoolableSize), cfg.logger,
		func(index int) (bucket[[]T], error) {
			size := ClassCapacity(index)
			if cfg.strategy == StrategyGuarded {
				return newGuardedBucket(size, capacity, makeSlice[T], lenOf[T]), nil
			}
			return newWaitFreeBucket[T](size, capacity), nil
		})
	cfg.logger.Info("managed pool created",
		zap.Int("max poolable size", cfg.maxPoolableSize),
		zap.Int("classes", p.table.len()),
		zap.Int("bucket capacity", capacity),
		zap.Stringer("strategy", cfg.strategy),
	)
	return p
}

func makeSlice[T any](n int) ([]T, error) { return make([]T, n), nil }

func lenOf[T any](b []T) int { return len(b) }

// MaxPoolableSize returns the pool ceiling.
func (p *ManagedPool[T]) MaxPoolableSize() int { return p.maxPoolableSize }

// Strategy returns the bucket synchronization scheme in use.
func (p *ManagedPool[T]) Strategy() Strategy { return p.strategy }

// Rent returns a buffer of at least minSize elements. Pooled buffers have the
// full class length; oversized ones have exactly minSize.
func (p *ManagedPool[T]) Rent(minSize int) ([]T, error) {
	if minSize <= 0 {
		return nil, fmt.Errorf("rent %d: %w", minSize, api.ErrInvalidArgument)
	}
	p.rents.Add(1)
	if minSize > p.maxPoolableSize {
		p.large.Add(1)
		return make([]T, minSize), nil
	}
	b, err := p.table.get(bucketIndex(minSize))
	if err != nil {
		return nil, err
	}
	return b.rent()
}

// Return hands buf back. Buffers whose capacity is not a class capacity of
// this pool are dropped.
func (p *ManagedPool[T]) Return(buf []T) {
	if buf == nil {
		return
	}
	p.returns.Add(1)
	size := cap(buf)
	index, ok := classOf(size, p.table.len())
	if !ok {
		p.discard(size, index)
		return
	}
	b, err := p.table.get(index)
	if err != nil {
		p.dropped.Add(1)
		return
	}
	kept, err := b.put(buf[:size])
	switch {
	case err != nil:
		p.mismatches.Add(1)
		p.logger.Debug("return rejected", zap.Error(err))
	case !kept:
		p.dropped.Add(1)
	}
}

func (p *ManagedPool[T]) discard(size, index int) {
	if index >= p.table.len() {
		// Oversized bypass buffers land here; that is expected, not a mismatch.
		p.dropped.Add(1)
		return
	}
	p.mismatches.Add(1)
	p.logger.Debug("dropping buffer with no size class", zap.Int("capacity", size))
}

// Enlarge rents a buffer of at least newMinSize, copies buf into it and
// returns buf to the pool. At most len(result) elements are carried over, so a
// newMinSize below len(buf) may cut the content short.
func (p *ManagedPool[T]) Enlarge(buf []T, newMinSize int) ([]T, error) {
	next, err := p.Rent(newMinSize)
	if err != nil {
		return buf, err
	}
	copy(next, buf)
	p.Return(buf)
	return next, nil
}

// AllocationCount reports fresh allocations: bucket misses, hole patches and
// oversized requests.
func (p *ManagedPool[T]) AllocationCount() uint64 {
	n := p.large.Load()
	p.table.each(func(_ int, b bucket[[]T]) {
		n += b.allocations()
	})
	return n
}

// LargeAllocationCount reports requests that bypassed the pool.
func (p *ManagedPool[T]) LargeAllocationCount() uint64 { return p.large.Load() }

// Stats snapshots pool counters.
func (p *ManagedPool[T]) Stats() api.PoolStats {
	s := api.PoolStats{
		MaxPoolableSize:  p.maxPoolableSize,
		LargeAllocations: p.large.Load(),
		Rents:            p.rents.Load(),
		Returns:          p.returns.Load(),
		Dropped:          p.dropped.Load(),
		SizeMismatches:   p.mismatches.Load(),
	}
	p.table.collect(&s)
	s.Allocations += s.LargeAllocations
	return s
}
