//go:build !unix && !windows

// File: pool/memory_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Platforms without an anonymous mapping API fall back to heap memory; the
// accounting still treats it as explicitly owned.

package pool

func allocNative(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func freeNative([]byte) error { return nil }
