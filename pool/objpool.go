// File: pool/objpool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Typed wrapper over sync.Pool for small per-operation objects (queues,
// scratch structs) that do not warrant a size-classed pool.

package pool

import "sync"

// ObjectPool hands out reusable objects of a single type.
type ObjectPool[T any] interface {
	Get() T
	Put(T)
}

// SyncPool is an ObjectPool backed by sync.Pool. Idle objects may be
// reclaimed by the GC at any time.
type SyncPool[T any] struct {
	pool  sync.Pool
	reset func(T)
}

var _ ObjectPool[int] = (*SyncPool[int])(nil)

// NewSyncPool creates a pool that builds objects with creator. reset, if not
// nil, runs on every object passed to Put.
func NewSyncPool[T any](creator func() T, reset func(T)) *SyncPool[T] {
	sp := &SyncPool[T]{reset: reset}
	sp.pool.New = func() any { return creator() }
	return sp
}

// Get returns an idle object or a new one.
func (sp *SyncPool[T]) Get() T {
	return sp.pool.Get().(T)
}

// Put resets obj and makes it available to Get.
func (sp *SyncPool[T]) Put(obj T) {
	if sp.reset != nil {
		sp.reset(obj)
	}
	sp.pool.Put(obj)
}
