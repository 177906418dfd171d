// Package pool
// Author: momentics <momentics@gmail.com>
//
// Size-classed buffer pooling for segmented buffers.
//
// Requests are mapped to power-of-two classes starting at 16 elements; each
// class keeps a bounded stack of idle buffers created lazily on first use.
// ManagedPool serves []T from the Go heap with either a wait-free or a
// spinlock-guarded bucket. NativePool serves *NativeBuffer from memory mapped
// outside the Go heap, one slab per class, and must be disposed by its owner.
// Requests above the ceiling bypass the buckets entirely.
//
// See sizeclass.go for the class mapping, bucket_waitfree.go for the
// lock-free slot protocol and native.go for the unmanaged variant.
package pool
