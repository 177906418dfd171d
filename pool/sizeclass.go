// File: pool/sizeclass.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Power-of-two size classes shared by managed and native pools.

package pool

import (
	"fmt"

	"github.com/momentics/segpool/api"
)

const (
	minClassShift = 4

	// MinClassCapacity is the capacity of size class 0.
	MinClassCapacity = 1 << minClassShift

	// MaxPoolableLimit is the largest maxPoolableSize a pool accepts.
	MaxPoolableLimit = 1 << 30
)

// SizeClass identifies the bucket that serves a request and its fixed capacity.
type SizeClass struct {
	Index    int
	Capacity int
}

// SelectBucketIndex maps a requested element count to its size-class index.
// Class i covers (ClassCapacity(i-1), ClassCapacity(i)].
func SelectBucketIndex(requestedSize int) (int, error) {
	if requestedSize <= 0 {
		return 0, fmt.Errorf("select bucket for size %d: %w", requestedSize, api.ErrInvalidArgument)
	}
	return bucketIndex(requestedSize), nil
}

// bucketIndex is SelectBucketIndex without the argument check. n must be > 0.
func bucketIndex(n int) int {
	bitsRemaining := uint(n-1) >> minClassShift
	index := 0
	for bitsRemaining != 0 {
		bitsRemaining >>= 1
		index++
	}
	return index
}

// ClassCapacity returns the buffer size served by class index.
func ClassCapacity(index int) int {
	return 2 << (index + 3)
}

// SelectClass resolves the size class for requestedSize.
func SelectClass(requestedSize int) (SizeClass, error) {
	index, err := SelectBucketIndex(requestedSize)
	if err != nil {
		return SizeClass{}, err
	}
	return SizeClass{Index: index, Capacity: ClassCapacity(index)}, nil
}

// NumClasses returns how many classes a pool with the given ceiling needs.
func NumClasses(maxPoolableSize int) int {
	return bucketIndex(maxPoolableSize) + 1
}

// classOf returns the index of the class whose capacity is exactly size, and
// false when size is not a class capacity or falls outside numClasses.
func classOf(size, numClasses int) (int, bool) {
	if size < MinClassCapacity {
		return 0, false
	}
	index := bucketIndex(size)
	if index >= numClasses || ClassCapacity(index) != size {
		return index, false
	}
	return index, true
}
