// Package sysinfo reports host uptime and disk usage for admin commands.
package sysinfo

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Uptime is a host load snapshot.
type Uptime struct {
	Up     time.Duration
	Load1  float64
	Load5  float64
	Load15 float64
	Procs  int
}

// Disk is the usage of the filesystem holding Path.
type Disk struct {
	Path  string
	Total uint64
	Free  uint64
	Avail uint64
}

// Used returns the bytes in use.
func (d Disk) Used() uint64 {
	if d.Free > d.Total {
		return 0
	}
	return d.Total - d.Free
}

// UsedPercent matches df: used / (used + available).
func (d Disk) UsedPercent() int {
	used := d.Used()
	denom := used + d.Avail
	if denom == 0 {
		return 0
	}
	return int((used*100 + denom - 1) / denom)
}

// Provider reads host metrics.
type Provider interface {
	Uptime() (Uptime, error)
	Disk(path string) (Disk, error)
}

// FormatUptime renders u in the spirit of uptime(1).
func FormatUptime(u Uptime, now time.Time) string {
	return fmt.Sprintf("%s up %s, %d processes, load average: %.2f, %.2f, %.2f",
		now.Format("15:04:05"), formatDuration(u.Up), u.Procs, u.Load1, u.Load5, u.Load15)
}

// FormatDisks renders a df-style table.
func FormatDisks(disks []Disk) string {
	var b strings.Builder
	b.WriteString("Mounted on\tSize\tUsed\tAvail\tUse%")
	for _, d := range disks {
		fmt.Fprintf(&b, "\n%s\t%s\t%s\t%s\t%d%%",
			d.Path,
			humanize.IBytes(d.Total),
			humanize.IBytes(d.Used()),
			humanize.IBytes(d.Avail),
			d.UsedPercent(),
		)
	}
	return b.String()
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int(d / time.Hour)
	minutes := int((d - time.Duration(hours)*time.Hour) / time.Minute)
	clock := fmt.Sprintf("%d:%02d", hours, minutes)
	if hours == 0 {
		clock = fmt.Sprintf("%d min", minutes)
	}
	switch days {
	case 0:
		return clock
	case 1:
		return "1 day, " + clock
	default:
		return fmt.Sprintf("%d days, %s", days, clock)
	}
}
