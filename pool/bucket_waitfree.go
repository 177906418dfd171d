// File: pool/bucket_waitfree.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Wait-free bucket for managed buffers: atomic slot exchange plus a
// compare-and-swap on the stack cursor.
//
// State machine of a slot at position i relative to the cursor top:
//
//	i <= top, occupied   idle buffer reachable by rent
//	i <= top, empty      hole: a renter won the slot but lost the cursor race;
//	                     the renter patches it with a fresh buffer
//	i >  top, occupied   orphan left by a put that lost the cursor race;
//	                     overwritten by the next successful put
//	i >  top, empty      free space
//
// No operation blocks or loops: each call does one swap and at most two CAS.

package pool

import (
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/cpu"
)

type waitFreeBucket[T any] struct {
	size int

	_   cpu.CacheLinePad
	top atomic.Int32 // highest occupied slot, -1 when empty
	_   cpu.CacheLinePad

	// slots hold the first element of an idle buffer; the slice header is
	// rebuilt from size on rent.
	slots []atomic.Pointer[T]

	allocs    atomic.Uint64
	lostRaces atomic.Uint64
	patched   atomic.Uint64

	// afterExchange, when set, runs between the slot swap and the cursor CAS
	// in rent. Tests use it to force the cursor race deterministically.
	afterExchange func()
}

func newWaitFreeBucket[T any](size, capacity int) *waitFreeBucket[T] {
	b := &waitFreeBucket[T]{
		size:  size,
		slots: make([]atomic.Pointer[T], capacity),
	}
	b.top.Store(-1)
	return b
}

func (b *waitFreeBucket[T]) allocate() []T {
	b.allocs.Add(1)
	return make([]T, b.size)
}

func (b *waitFreeBucket[T]) rent() ([]T, error) {
	top := b.top.Load()
	if top < 0 {
		return b.allocate(), nil
	}
	head := b.slots[top].Swap(nil)
	if head == nil {
		// Another renter emptied the slot first.
		return b.allocate(), nil
	}
	if b.afterExchange != nil {
		b.afterExchange()
	}
	if !b.top.CompareAndSwap(top, top-1) {
		b.lostRaces.Add(1)
		b.patchHole(top)
	}
	return unsafe.Slice(head, b.size), nil
}

// patchHole refills slot i after its renter lost the cursor race, so the
// slot below the moved cursor does not stay empty and strand capacity.
// A concurrent put that already refilled it wins.
func (b *waitFreeBucket[T]) patchHole(i int32) {
	if b.slots[i].Load() != nil {
		return
	}
	fresh := b.allocate()
	if b.slots[i].CompareAndSwap(nil, unsafe.SliceData(fresh)) {
		b.patched.Add(1)
	}
}

func (b *waitFreeBucket[T]) put(buf []T) (bool, error) {
	if len(buf) != b.size {
		return false, sizeMismatch(len(buf), b.size)
	}
	top := b.top.Load()
	if int(top) >= len(b.slots)-1 {
		return false, nil
	}
	next := top + 1
	b.slots[next].Store(unsafe.SliceData(buf))
	if !b.top.CompareAndSwap(top, next) {
		// buf sits above the cursor; the next successful put overwrites it.
		b.lostRaces.Add(1)
		return false, nil
	}
	return true, nil
}

// idle counts occupied slots at or below the cursor.
func (b *waitFreeBucket[T]) idle() int {
	top := int(b.top.Load())
	n := 0
	for i := 0; i <= top && i < len(b.slots); i++ {
		if b.slots[i].Load() != nil {
			n++
		}
	}
	return n
}

func (b *waitFreeBucket[T]) allocations() uint64 { return b.allocs.Load() }

func (b *waitFreeBucket[T]) stats() bucketStats {
	return bucketStats{
		ClassStats:   classStats(b.size, len(b.slots), b.idle(), b.allocs.Load()),
		lostRaces:    b.lostRaces.Load(),
		patchedHoles: b.patched.Load(),
	}
}

// release drops every idle buffer; managed memory is reclaimed by the GC.
func (b *waitFreeBucket[T]) release() error {
	for i := range b.slots {
		b.slots[i].Store(nil)
	}
	b.top.Store(-1)
	return nil
}
