//go:build windows

// control/platform_windows.go
// Author: momentics <momentics@gmail.com>
//
// Windows probes describing the memory native pools reserve from.

package control

import (
	"runtime"

	"golang.org/x/sys/windows"
)

// RegisterPlatformProbes adds page size and CPU count probes.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
	dp.RegisterProbe("platform.page_size", func() any {
		return windows.Getpagesize()
	})
}
