// Package hoststat samples the driver-station host's own CPU/RAM/disk usage
// for the terminal UI's resource readout, using the same gopsutil collectors
// the teacher's TUI polled once a second. Nothing here is sent to the robot.
package hoststat

import (
	"fmt"

	psutil "github.com/shirou/gopsutil/v3/cpu"
	psdisk "github.com/shirou/gopsutil/v3/disk"
	psmem "github.com/shirou/gopsutil/v3/mem"
)

// Sample is one point-in-time reading of local host resource usage.
type Sample struct {
	CPUPercent    []float64
	RAMUsedBytes  uint64
	RAMTotalBytes uint64
	FreeDiskBytes uint64
}

// Collect samples per-core CPU usage, RAM usage and free disk space for
// path. A failed sub-collector contributes its zero value rather than
// failing the whole sample; the first such error is returned alongside it.
func Collect(path string) (Sample, error) {
	var s Sample
	var firstErr error

	if percents, err := psutil.Percent(0, true); err == nil {
		s.CPUPercent = percents
	} else if firstErr == nil {
		firstErr = fmt.Errorf("cpu percent: %w", err)
	}

	if vm, err := psmem.VirtualMemory(); err == nil {
		s.RAMUsedBytes = vm.Used
		s.RAMTotalBytes = vm.Total
	} else if firstErr == nil {
		firstErr = fmt.Errorf("virtual memory: %w", err)
	}

	if usage, err := psdisk.Usage(path); err == nil {
		s.FreeDiskBytes = usage.Free
	} else if firstErr == nil {
		firstErr = fmt.Errorf("disk usage: %w", err)
	}

	return s, firstErr
}
