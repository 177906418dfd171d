// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for segpool.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	ErrInvalidArgument   = NewError(ErrCodeInvalidArgument, "invalid argument")
	ErrSizeMismatch      = NewError(ErrCodeSizeMismatch, "buffer size does not match a size class")
	ErrUseAfterDispose   = NewError(ErrCodeUseAfterDispose, "pool used after dispose")
	ErrResourceExhausted = NewError(ErrCodeResourceExhausted, "resource exhausted")
	ErrInternal          = NewError(ErrCodeInternal, "internal error")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeSizeMismatch
	ErrCodeUseAfterDispose
	ErrCodeResourceExhausted
	ErrCodeInternal
)

// String returns the symbolic name of the code.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "OK"
	case ErrCodeInvalidArgument:
		return "InvalidArgument"
	case ErrCodeSizeMismatch:
		return "SizeMismatch"
	case ErrCodeUseAfterDispose:
		return "UseAfterDispose"
	case ErrCodeResourceExhausted:
		return "ResourceExhausted"
	case ErrCodeInternal:
		return "Internal"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int(c))
	}
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// Is reports whether target carries the same code, so errors.Is matches a
// contextualized copy against the package sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithContext returns a copy of e with key=value added to its context.
// Sentinels are never mutated.
func (e *Error) WithContext(key string, value any) *Error {
	ctx := make(map[string]any, len(e.Context)+1)
	for k, v := range e.Context {
		ctx[k] = v
	}
	ctx[key] = value
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Context: ctx,
	}
}

// CodeOf extracts the ErrorCode carried by err, or ErrCodeInternal for foreign errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}
