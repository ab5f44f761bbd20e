//go:build linux

package tuner

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Detect detects available system resources (CPU and RAM).
// On linux it uses sysinfo(2); buffer memory counts as available.
func Detect() (SystemResources, error) {
	resources := SystemResources{
		CPUCores: runtime.NumCPU(),
	}

	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		resources.TotalRAM = defaultTotalRAM
		resources.AvailableRAM = defaultTotalRAM / 2
		return resources, fmt.Errorf("sysinfo: %w", err)
	}

	unit := int64(info.Unit)
	if unit == 0 {
		unit = 1
	}

	resources.TotalRAM = int64(uint64(info.Totalram)) * unit
	resources.AvailableRAM = int64(uint64(info.Freeram)+uint64(info.Bufferram)) * unit
	resources.AvailableRAM = min(resources.AvailableRAM, resources.TotalRAM)

	return resources, nil
}
