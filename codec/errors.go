// File: codec/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package codec

import "github.com/momentics/segpool/api"

// MaxBlockSize bounds the decoded size a block header may declare.
const MaxBlockSize = 64 << 20

var (
	// ErrCorrupt reports a block that cannot be decoded.
	ErrCorrupt = api.NewError(api.ErrCodeInvalidArgument, "corrupt compressed block")
	// ErrTooLarge reports a block above MaxBlockSize.
	ErrTooLarge = api.NewError(api.ErrCodeResourceExhausted, "block exceeds maximum size")
)
