// Package build contains the version information of the k6streams binary.
package build

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version is the current k6streams version.
// It can be overwritten at link time, with -ldflags "-X ...build.Version=x.y.z".
var Version = "0.1.0" //nolint:gochecknoglobals

const (
	commitKey      = "vcs.revision"
	commitDirtyKey = "vcs.modified"
)

// FullVersion returns the version, along with the commit the binary was built
// from when known, and the platform details.
func FullVersion() string {
	goVersionArch := fmt.Sprintf("%s, %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)

	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return fmt.Sprintf("%s (%s)", Version, goVersionArch)
	}

	var commit string
	var dirty bool
	for _, s := range buildInfo.Settings {
		switch s.Key {
		case commitKey:
			if len(s.Value) >= 10 {
				commit = s.Value[:10]
			}
		case commitDirtyKey:
			dirty = s.Value == "true"
		}
	}

	if commit == "" {
		return fmt.Sprintf("%s (%s)", Version, goVersionArch)
	}
	if dirty {
		commit += "-dirty"
	}

	return fmt.Sprintf("%s (commit/%s, %s)", Version, commit, goVersionArch)
}

// Details returns the version information as a map, for machine-readable outputs.
func Details() map[string]string {
	return map[string]string{
		"version":    "v" + Version,
		"go_version": runtime.Version(),
		"go_os":      runtime.GOOS,
		"go_arch":    runtime.GOARCH,
	}
}
