package cmd

import "github.com/comp-lang/comp/internal/version"

// versionInfo returns the one-line version string.
func versionInfo() string {
	return version.Get().String()
}
