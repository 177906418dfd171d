//go:build unix

// control/platform_unix.go
// Author: momentics <momentics@gmail.com>
//
// Unix probes describing the memory native pools map from.

package control

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// RegisterPlatformProbes adds page size and CPU count probes.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
	dp.RegisterProbe("platform.page_size", func() any {
		return unix.Getpagesize()
	})
}
