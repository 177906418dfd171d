// File: pool/bucket.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-size-class cache of idle buffers and the lazily populated bucket table.

package pool

import (
	"fmt"
	"sync/atomic"

	"github.com/momentics/segpool/api"
	"go.uber.org/zap"
)

// bucket is a fixed-capacity, goroutine-safe stack of idle buffers of one class.
type bucket[B any] interface {
	// rent hands out an idle buffer or allocates a fresh one.
	rent() (B, error)
	// put offers buf back. kept is false when the bucket was full and buf was
	// dropped (or freed). A wrong-sized buf yields errSizeMismatch.
	put(buf B) (kept bool, err error)
	// allocations counts fresh buffers created by this bucket.
	allocations() uint64
	// stats snapshots the bucket counters.
	stats() bucketStats
	// release gives up everything the bucket owns. Used for discarded
	// duplicates and on pool disposal.
	release() error
}

type bucketStats struct {
	api.ClassStats
	lostRaces    uint64
	patchedHoles uint64
}

func classStats(size, capacity, idle int, allocs uint64) api.ClassStats {
	return api.ClassStats{
		Index:       bucketIndex(size),
		BufferSize:  size,
		Capacity:    capacity,
		Idle:        idle,
		Allocations: allocs,
	}
}

func sizeMismatch(got, want int) error {
	return fmt.Errorf("buffer of %d elements offered to %d-element bucket: %w",
		got, want, api.ErrSizeMismatch)
}

// bucketRef boxes the interface so it can live behind atomic.Pointer.
type bucketRef[B any] struct {
	bucket[B]
}

// bucketTable owns one lazily constructed bucket per size class. An installed
// bucket is never replaced.
type bucketTable[B any] struct {
	slots     []atomic.Pointer[bucketRef[B]]
	newBucket func(index int) (bucket[B], error)
	discarded atomic.Uint64
	logger    *zap.Logger
}

func newBucketTable[B any](numClasses int, logger *zap.Logger, newBucket func(int) (bucket[B], error)) *bucketTable[B] {
	return &bucketTable[B]{
		slots:     make([]atomic.Pointer[bucketRef[B]], numClasses),
		newBucket: newBucket,
		logger:    logger,
	}
}

func (t *bucketTable[B]) len() int { return len(t.slots) }

// get returns the bucket for index, constructing it on first use. Construction
// happens outside any lock; the first CompareAndSwap wins and a losing
// duplicate is released.
func (t *bucketTable[B]) get(index int) (bucket[B], error) {
	if ref := t.slots[index].Load(); ref != nil {
		return ref.bucket, nil
	}
	b, err := t.newBucket(index)
	if err != nil {
		return nil, err
	}
	ref := &bucketRef[B]{bucket: b}
	if t.slots[index].CompareAndSwap(nil, ref) {
		t.logger.Debug("bucket materialized",
			zap.Int("class", index),
			zap.Int("buffer size", ClassCapacity(index)))
		return b, nil
	}
	t.discarded.Add(1)
	if err := b.release(); err != nil {
		t.logger.Warn("release discarded bucket", zap.Int("class", index), zap.Error(err))
	}
	t.logger.Debug("duplicate bucket discarded", zap.Int("class", index))
	return t.slots[index].Load().bucket, nil
}

// each visits every installed bucket in class order.
func (t *bucketTable[B]) each(fn func(index int, b bucket[B])) {
	for i := range t.slots {
		if ref := t.slots[i].Load(); ref != nil {
			fn(i, ref.bucket)
		}
	}
}

// collect folds bucket statistics into s.
func (t *bucketTable[B]) collect(s *api.PoolStats) {
	t.each(func(_ int, b bucket[B]) {
		bs := b.stats()
		s.Allocations += bs.Allocations
		s.LostRaces += bs.lostRaces
		s.PatchedHoles += bs.patchedHoles
		s.Classes = append(s.Classes, bs.ClassStats)
	})
	s.DiscardedBuckets = t.discarded.Load()
}
