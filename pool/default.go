// File: pool/default.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Process-wide shared byte pool.

package pool

import "sync"

var (
	defaultOnce sync.Once
	defaultPool *ManagedPool[byte]
)

// Default returns the process-wide byte pool so all components reuse the same
// buckets instead of fragmenting allocations. It is built once with
// DefaultMaxPoolableSize and DefaultBucketCapacity and never reconfigured;
// components that need other settings should own a pool via NewManagedPool.
func Default() *ManagedPool[byte] {
	defaultOnce.Do(func() {
		cfg, err := newConfig(DefaultBucketCapacity, nil)
		if err != nil {
			panic(err)
		}
		defaultPool = newManagedPool[byte](cfg)
	})
	return defaultPool
}

// Rent is a shortcut for Default().Rent.
func Rent(minSize int) ([]byte, error) {
	return Default().Rent(minSize)
}

// Return is a shortcut for Default().Return.
func Return(buf []byte) {
	Default().Return(buf)
}
