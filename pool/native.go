// File: pool/native.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Size-classed pool of byte buffers living outside the Go heap.

package pool

import (
	"fmt"
	"sync/atomic"

	"github.com/momentics/segpool/api"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// NativePool rents *NativeBuffer values backed by platform memory. Each size
// class owns an unmanaged slab created on first use; once the slab windows are
// all rented, further buffers are standalone allocations that are freed as
// soon as they no longer fit in the bucket.
//
// The owner must call Dispose. Every buffer rented before Dispose should be
// returned before it; buffers still out at Dispose time become dangling.
// Rent, Enlarge and a second Dispose fail with ErrUseAfterDispose afterwards,
// and Return logs it. AllocationCount, LargeAllocationCount, OutstandingBytes
// and Stats stay usable after Dispose so leaks can be checked; Stats reports
// Disposed.
type NativePool struct {
	maxPoolableSize int
	bucketCapacity  int
	mem             nativeMemory
	table           *bucketTable[*NativeBuffer]
	logger          *zap.Logger
	disposed        atomic.Bool

	large      atomic.Uint64
	rents      atomic.Uint64
	returns    atomic.Uint64
	dropped    atomic.Uint64
	mismatches atomic.Uint64
	late       atomic.Uint64
}

var (
	_ api.Pool[*NativeBuffer] = (*NativePool)(nil)
	_ api.Disposer            = (*NativePool)(nil)
)

// NewNativePool creates a native pool. Defaults: DefaultMaxPoolableSize and
// DefaultNativeBucketCapacity slab windows per class.
func NewNativePool(opts ...Option) (*NativePool, error) {
	cfg, err := newConfig(DefaultNativeBucketCapacity, opts)
	if err != nil {
		return nil, fmt.Errorf("new native pool: %w", err)
	}
	p := &NativePool{
		maxPoolableSize: cfg.maxPoolableSize,
		bucketCapacity:  cfg.bucketCapacity,
		logger:          cfg.logger,
	}
	p.table = newBucketTable(NumClasses(cfg.maxPoolableSize), cfg.logger,
		func(index int) (bucket[*NativeBuffer], error) {
			return newNativeBucket(&p.mem, index, cfg.bucketCapacity, cfg)
		})
	cfg.logger.Info("native pool created",
		zap.Int("max poolable size", cfg.maxPoolableSize),
		zap.Int("classes", p.table.len()),
		zap.Int("slab windows", cfg.bucketCapacity),
	)
	return p, nil
}

func (p *NativePool) useAfterDispose(op string) error {
	return fmt.Errorf("%s: %w", op, api.ErrUseAfterDispose)
}

// MaxPoolableSize returns the pool ceiling.
func (p *NativePool) MaxPoolableSize() int { return p.maxPoolableSize }

// Rent returns a buffer of at least minSize bytes.
func (p *NativePool) Rent(minSize int) (*NativeBuffer, error) {
	if p.disposed.Load() {
		return nil, p.useAfterDispose("rent")
	}
	if minSize <= 0 {
		return nil, fmt.Errorf("rent %d: %w", minSize, api.ErrInvalidArgument)
	}
	p.rents.Add(1)
	if minSize > p.maxPoolableSize {
		data, err := p.mem.alloc(minSize)
		if err != nil {
			return nil, err
		}
		p.large.Add(1)
		return &NativeBuffer{data: data, origin: OriginStandalone}, nil
	}
	b, err := p.table.get(bucketIndex(minSize))
	if err != nil {
		return nil, err
	}
	if p.disposed.Load() {
		// Dispose ran while the bucket was being installed.
		if err := b.release(); err != nil {
			p.logger.Warn("release bucket installed during dispose",
				zap.Int("class", bucketIndex(minSize)), zap.Error(err))
		}
		return nil, p.useAfterDispose("rent")
	}
	return b.rent()
}

// Return hands buf back. Standalone buffers that do not fit are freed; slab
// windows are kept until their slab goes. Return after Dispose frees what it
// can, counts the call and logs a warning.
func (p *NativePool) Return(buf *NativeBuffer) {
	if buf == nil {
		return
	}
	p.returns.Add(1)
	if p.disposed.Load() {
		p.late.Add(1)
		p.logger.Warn("return after dispose",
			zap.Int("size", len(buf.data)),
			zap.Stringer("origin", buf.origin),
			zap.Error(api.ErrUseAfterDispose))
		p.free(buf)
		return
	}
	size := len(buf.data)
	index, ok := classOf(size, p.table.len())
	if !ok {
		if index < p.table.len() {
			p.mismatches.Add(1)
			p.logger.Debug("freeing buffer with no size class", zap.Int("size", size))
		} else {
			p.dropped.Add(1)
		}
		p.free(buf)
		return
	}
	b, err := p.table.get(index)
	if err != nil {
		p.dropped.Add(1)
		p.free(buf)
		return
	}
	kept, err := b.put(buf)
	switch {
	case err != nil:
		p.mismatches.Add(1)
		p.free(buf)
	case !kept:
		p.dropped.Add(1)
	}
}

// free releases standalone memory. Slab windows are owned by their slab.
func (p *NativePool) free(buf *NativeBuffer) {
	if buf.origin != OriginStandalone {
		return
	}
	if err := p.mem.free(buf.data); err != nil {
		p.logger.Error("free standalone buffer", zap.Int("size", len(buf.data)), zap.Error(err))
	}
}

// Enlarge rents a buffer of at least newMinSize, copies buf into it and
// returns buf to the pool. Only the first Len() bytes of the new buffer are
// carried over, so a newMinSize below buf.Len() may cut the content short.
func (p *NativePool) Enlarge(buf *NativeBuffer, newMinSize int) (*NativeBuffer, error) {
	next, err := p.Rent(newMinSize)
	if err != nil {
		return buf, err
	}
	if buf != nil {
		copy(next.data, buf.data)
		p.Return(buf)
	}
	return next, nil
}

// AllocationCount reports fresh platform allocations made for buffers:
// standalone bucket misses and oversized requests. Slab windows are not
// counted.
func (p *NativePool) AllocationCount() uint64 {
	n := p.large.Load()
	p.table.each(func(_ int, b bucket[*NativeBuffer]) {
		n += b.allocations()
	})
	return n
}

// LargeAllocationCount reports requests that bypassed the pool.
func (p *NativePool) LargeAllocationCount() uint64 { return p.large.Load() }

// OutstandingBytes reports platform memory currently held for this pool,
// including slabs and rented standalone buffers.
func (p *NativePool) OutstandingBytes() int64 { return p.mem.bytes() }

// Dispose frees every slab and idle standalone buffer. A second call returns
// ErrUseAfterDispose.
func (p *NativePool) Dispose() error {
	if !p.disposed.CompareAndSwap(false, true) {
		return p.useAfterDispose("dispose")
	}
	var errs error
	p.table.each(func(index int, b bucket[*NativeBuffer]) {
		if err := b.release(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("class %d: %w", index, err))
		}
	})
	p.logger.Info("native pool disposed",
		zap.Int64("outstanding bytes", p.mem.bytes()),
		zap.Uint64("allocations", p.AllocationCount()))
	return errs
}

// Stats snapshots pool counters.
func (p *NativePool) Stats() api.PoolStats {
	s := api.PoolStats{
		MaxPoolableSize:  p.maxPoolableSize,
		LargeAllocations: p.large.Load(),
		Rents:            p.rents.Load(),
		Returns:          p.returns.Load(),
		Dropped:          p.dropped.Load(),
		SizeMismatches:   p.mismatches.Load(),
		LateReturns:      p.late.Load(),
		OutstandingBytes: p.mem.bytes(),
		Disposed:         p.disposed.Load(),
	}
	p.table.collect(&s)
	s.Allocations += s.LargeAllocations
	return s
}
