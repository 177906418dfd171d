// File: internal/concurrency/spinlock.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Test-and-set spinlock for critical sections that only touch a few words.

package concurrency

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// spinsBeforeYield bounds busy-waiting before handing the P to another goroutine.
const spinsBeforeYield = 16

// SpinLock is a mutual-exclusion guard for very short critical sections.
// The zero value is unlocked. It must not be held across allocation,
// syscalls or anything else that may block.
type SpinLock struct {
	state atomic.Uint32
}

var _ sync.Locker = (*SpinLock)(nil)

// Lock acquires the lock, spinning and periodically yielding while contended.
func (l *SpinLock) Lock() {
	spins := 0
	for !l.TryLock() {
		spins++
		if spins >= spinsBeforeYield {
			runtime.Gosched()
			spins = 0
		}
	}
}

// TryLock acquires the lock if it is free and reports whether it did.
func (l *SpinLock) TryLock() bool {
	return l.state.Load() == 0 && l.state.CompareAndSwap(0, 1)
}

// Unlock releases the lock. Unlocking an unlocked SpinLock panics.
func (l *SpinLock) Unlock() {
	if l.state.Swap(0) == 0 {
		panic("concurrency: unlock of unlocked SpinLock")
	}
}
