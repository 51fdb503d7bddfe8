// Package version provides application version and build info.
//
//nolint:revive
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// Name is the binary name reported by the CLI.
const Name = "imgbot"

var (
	// Version is the current version of the application.
	// It can be overridden by ldflags at build time.
	Version = "dev"
	// CommitHash is the git commit hash at build time.
	// It can be overridden by ldflags at build time.
	CommitHash = ""
	// BuildTime is the time when the application was built.
	// It can be overridden by ldflags at build time.
	BuildTime = ""
)

var vcsOnce sync.Once

func loadVCS() {
	vcsOnce.Do(func() {
		if CommitHash != "" {
			return
		}
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				CommitHash = setting.Value
			case "vcs.time":
				BuildTime = setting.Value
			}
		}
	})
}

// GetInfo returns the version with a short commit hash, e.g. "v1.2.0 (abc1234)".
func GetInfo() string {
	loadVCS()
	res := Version
	if CommitHash != "" {
		shortHash := CommitHash
		if len(shortHash) > 7 {
			shortHash = shortHash[:7]
		}
		res += fmt.Sprintf(" (%s)", shortHash)
	}
	return res
}

// Full is the multi-line report printed by `imgbot version`.
func Full() string {
	info := GetInfo()
	built := BuildTime
	if built == "" {
		built = "unknown"
	}
	return fmt.Sprintf("%s %s\nbuilt: %s\ngo: %s %s/%s", Name, info, built, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
