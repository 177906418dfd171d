// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Low-level synchronization primitives for segpool. SpinLock guards the short
// critical sections of the guarded bucket strategy.
package concurrency
