package app

import "github.com/kart-io/version"

// Version returns the version stamped into the binary at build time, or
// "unknown" for unstamped builds.
func Version() string {
	if v := version.Get().GitVersion; v != "" {
		return v
	}
	return "unknown"
}
