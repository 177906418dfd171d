//go:build !segpool_debug

package pool

// debugChecks turns internal consistency violations into panics.
// Enable with -tags segpool_debug.
const debugChecks = false
