//go:build unix

// File: pool/memory_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Anonymous private mappings for native buffers.

package pool

import "golang.org/x/sys/unix"

// allocNative maps size bytes of zeroed memory. The slice must be passed back
// to freeNative unchanged (same length and capacity).
func allocNative(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
}

func freeNative(data []byte) error {
	return unix.Munmap(data)
}
