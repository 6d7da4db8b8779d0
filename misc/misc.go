// Package misc keeps build identity helpers used across the program.
package misc

import (
	"runtime/debug"
)

const appName = "aside"

// Set by the build via -ldflags when releasing, otherwise derived from the
// embedded build info below.
var (
	version = ""
	gitHash = ""
)

// GetAppName returns short program name used for logs, temp files and the
// logger root namespace.
func GetAppName() string {
	return appName
}

// GetVersion returns program version.
func GetVersion() string {
	if len(version) != 0 {
		return version
	}
	if bi, ok := debug.ReadBuildInfo(); ok && len(bi.Main.Version) != 0 {
		return bi.Main.Version
	}
	return "(devel)"
}

// GetGitHash returns VCS revision recorded in the binary.
func GetGitHash() string {
	if len(gitHash) != 0 {
		return gitHash
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return "unknown"
}
