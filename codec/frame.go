// File: codec/frame.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Block header: one method byte followed by the uvarint decoded length.

package codec

import (
	"encoding/binary"
	"fmt"
)

const (
	methodRaw byte = iota
	methodLZ4
)

const maxHeaderLen = 1 + binary.MaxVarintLen64

func putHeader(dst []byte, method byte, decodedLen int) int {
	dst[0] = method
	return 1 + binary.PutUvarint(dst[1:], uint64(decodedLen))
}

func readHeader(src []byte) (method byte, decodedLen, headerLen int, err error) {
	if len(src) < 2 {
		return 0, 0, 0, fmt.Errorf("header of %d bytes: %w", len(src), ErrCorrupt)
	}
	n, k := binary.Uvarint(src[1:])
	if k <= 0 {
		return 0, 0, 0, fmt.Errorf("block length: %w", ErrCorrupt)
	}
	if n > MaxBlockSize {
		return 0, 0, 0, fmt.Errorf("block of %d bytes: %w", n, ErrTooLarge)
	}
	return src[0], int(n), 1 + k, nil
}
