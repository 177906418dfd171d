//go:build windows

// File: pool/memory_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// VirtualAlloc-backed native buffers.

package pool

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

func allocNative(size int) ([]byte, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(size),
		windows.MEM_RESERVE|windows.MEM_COMMIT, windows.PAGE_READWRITE)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

func freeNative(data []byte) error {
	return windows.VirtualFree(uintptr(unsafe.Pointer(unsafe.SliceData(data))), 0, windows.MEM_RELEASE)
}
