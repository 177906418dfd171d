// File: pool/bucket_native.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Guarded bucket backed by an unmanaged slab. Starts warm: every slab window
// is idle at construction.

package pool

import (
	"go.uber.org/zap"
)

type nativeBucket struct {
	*guardedBucket[*NativeBuffer]
	mem    *nativeMemory
	slab   *unmanagedSlab
	logger *zap.Logger
}

func newNativeBucket(mem *nativeMemory, index, capacity int, cfg config) (*nativeBucket, error) {
	size := ClassCapacity(index)
	slab, err := newUnmanagedSlab(mem, size, capacity)
	if err != nil {
		return nil, err
	}
	slab.onFree = cfg.onSlabFree

	nb := &nativeBucket{mem: mem, slab: slab, logger: cfg.logger}
	nb.guardedBucket = newGuardedBucket(size, capacity, nb.allocate, nativeLen)
	nb.drop = nb.discard
	nb.evictable = isStandalone
	nb.seed(slab.windows())

	if cfg.onSlabAlloc != nil {
		cfg.onSlabAlloc(slab.info())
	}
	cfg.logger.Debug("slab mapped",
		zap.Int("class", index),
		zap.Int("buffer size", size),
		zap.Int("windows", capacity))
	return nb, nil
}

func isStandalone(b *NativeBuffer) bool { return b.origin == OriginStandalone }

// allocate creates a standalone buffer once the slab windows are all rented.
func (nb *nativeBucket) allocate(size int) (*NativeBuffer, error) {
	data, err := nb.mem.alloc(size)
	if err != nil {
		return nil, err
	}
	return &NativeBuffer{data: data, origin: OriginStandalone}, nil
}

// discard frees standalone memory immediately. Slab windows stay mapped until
// the slab goes.
func (nb *nativeBucket) discard(b *NativeBuffer) {
	if b.origin != OriginStandalone {
		return
	}
	if err := nb.mem.free(b.data); err != nil {
		nb.logger.Error("free standalone buffer", zap.Int("size", len(b.data)), zap.Error(err))
	}
}

// release frees idle standalone buffers and then the slab. Rented buffers
// must already be back.
func (nb *nativeBucket) release() error {
	if err := nb.guardedBucket.release(); err != nil {
		return err
	}
	if err := nb.slab.free(); err != nil {
		return err
	}
	nb.logger.Debug("slab freed", zap.Int("buffer size", nb.size))
	return nil
}
