//go:build segpool_debug

package pool

const debugChecks = true
