//go:build linux

package sysinfo

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// loadScale undoes the kernel's 16-bit fixed-point load averages.
const loadScale = 1 << 16

// Host reads metrics from the running kernel.
type Host struct{}

// NewHost returns the kernel-backed provider.
func NewHost() Host {
	return Host{}
}

func (Host) Uptime() (Uptime, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return Uptime{}, fmt.Errorf("sysinfo: %w", err)
	}
	return Uptime{
		Up:     time.Duration(info.Uptime) * time.Second,
		Load1:  float64(info.Loads[0]) / loadScale,
		Load5:  float64(info.Loads[1]) / loadScale,
		Load15: float64(info.Loads[2]) / loadScale,
		Procs:  int(info.Procs),
	}, nil
}

func (Host) Disk(path string) (Disk, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Disk{}, fmt.Errorf("statfs %s: %w", path, err)
	}
	bsize := uint64(st.Bsize)
	return Disk{
		Path:  path,
		Total: st.Blocks * bsize,
		Free:  st.Bfree * bsize,
		Avail: st.Bavail * bsize,
	}, nil
}
