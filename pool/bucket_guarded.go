// File: pool/bucket_guarded.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Spinlock-guarded bucket. The guard covers slot bookkeeping only; allocation
// and native frees always happen after it is released.

package pool

import (
	"fmt"
	"sync/atomic"

	"github.com/momentics/segpool/internal/concurrency"
)

type guardedBucket[B any] struct {
	size int

	lock  concurrency.SpinLock
	slots []B
	index int // idle buffers in slots[:index]

	allocs atomic.Uint64

	newBuffer func(size int) (B, error)
	lengthOf  func(B) int
	// drop disposes of a buffer that did not fit. Nil for managed memory.
	drop func(B)
	// evictable reports whether an idle buffer may be pushed out by an
	// incoming one that is not itself evictable. Nil disables eviction.
	evictable func(B) bool
}

func newGuardedBucket[B any](size, capacity int, newBuffer func(int) (B, error), lengthOf func(B) int) *guardedBucket[B] {
	return &guardedBucket[B]{
		size:      size,
		slots:     make([]B, capacity),
		newBuffer: newBuffer,
		lengthOf:  lengthOf,
	}
}

func (b *guardedBucket[B]) rent() (B, error) {
	b.lock.Lock()
	if b.index == 0 {
		b.lock.Unlock()
		buf, err := b.newBuffer(b.size)
		if err != nil {
			var zero B
			return zero, err
		}
		b.allocs.Add(1)
		return buf, nil
	}
	var zero B
	b.index--
	buf := b.slots[b.index]
	b.slots[b.index] = zero
	b.lock.Unlock()
	return buf, nil
}

func (b *guardedBucket[B]) put(buf B) (bool, error) {
	if n := b.lengthOf(buf); n != b.size {
		if debugChecks {
			panic(fmt.Sprintf("pool: %d-element buffer offered to %d-element bucket", n, b.size))
		}
		return false, sizeMismatch(n, b.size)
	}

	b.lock.Lock()
	if b.index < len(b.slots) {
		b.slots[b.index] = buf
		b.index++
		b.lock.Unlock()
		return true, nil
	}
	victim, kept := buf, false
	if b.evictable != nil && !b.evictable(buf) {
		for i := b.index - 1; i >= 0; i-- {
			if b.evictable(b.slots[i]) {
				victim, b.slots[i] = b.slots[i], buf
				kept = true
				break
			}
		}
	}
	b.lock.Unlock()

	if b.drop != nil {
		b.drop(victim)
	}
	return kept, nil
}

// seed fills the bucket with pre-existing idle buffers, up to its capacity.
func (b *guardedBucket[B]) seed(bufs []B) {
	b.lock.Lock()
	b.index += copy(b.slots[b.index:], bufs)
	b.lock.Unlock()
}

// drain removes and returns every idle buffer.
func (b *guardedBucket[B]) drain() []B {
	b.lock.Lock()
	out := make([]B, b.index)
	copy(out, b.slots[:b.index])
	clear(b.slots[:b.index])
	b.index = 0
	b.lock.Unlock()
	return out
}

func (b *guardedBucket[B]) idle() int {
	b.lock.Lock()
	n := b.index
	b.lock.Unlock()
	return n
}

func (b *guardedBucket[B]) allocations() uint64 { return b.allocs.Load() }

func (b *guardedBucket[B]) stats() bucketStats {
	return bucketStats{
		ClassStats: classStats(b.size, len(b.slots), b.idle(), b.allocs.Load()),
	}
}

func (b *guardedBucket[B]) release() error {
	bufs := b.drain()
	if b.drop != nil {
		for _, buf := range bufs {
			b.drop(buf)
		}
	}
	return nil
}
