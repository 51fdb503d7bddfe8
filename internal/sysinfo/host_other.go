//go:build !linux

package sysinfo

import "errors"

// Host is unavailable off linux; every call fails with errors.ErrUnsupported.
type Host struct{}

func NewHost() Host {
	return Host{}
}

func (Host) Uptime() (Uptime, error) {
	return Uptime{}, errors.ErrUnsupported
}

func (Host) Disk(string) (Disk, error) {
	return Disk{}, errors.ErrUnsupported
}
