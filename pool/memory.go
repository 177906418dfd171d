// File: pool/memory.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Accounting wrapper over the platform allocator for memory outside the Go heap.

package pool

import (
	"fmt"
	"sync/atomic"

	"github.com/momentics/segpool/api"
)

// Platform allocator entry points. Variables so tests can substitute them.
var (
	mapMemory   = allocNative
	unmapMemory = freeNative
)

// nativeMemory tracks bytes a single pool holds from the platform allocator.
type nativeMemory struct {
	outstanding atomic.Int64
}

func (m *nativeMemory) alloc(size int) ([]byte, error) {
	data, err := mapMemory(size)
	if err != nil {
		return nil, fmt.Errorf("map %d bytes: %w: %w", size, api.ErrResourceExhausted, err)
	}
	m.outstanding.Add(int64(len(data)))
	return data, nil
}

// free releases exactly the slice returned by alloc.
func (m *nativeMemory) free(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	n := int64(len(data))
	if err := unmapMemory(data); err != nil {
		return fmt.Errorf("unmap %d bytes: %w", n, err)
	}
	m.outstanding.Add(-n)
	return nil
}

func (m *nativeMemory) bytes() int64 { return m.outstanding.Load() }
