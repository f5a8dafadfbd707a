// Package version provides build version information.
package version

import "fmt"

// Overridden at build time via ldflags.
// Example: go build -ldflags "-X github.com/graaaaa/reconcile/internal/version.Version=0.1.0"
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// String returns the current version string.
func String() string {
	return Version
}

// Long returns the version with commit and build date when they are known.
func Long() string {
	switch {
	case Commit != "" && Date != "":
		return fmt.Sprintf("%s (%s, built %s)", Version, Commit, Date)
	case Commit != "":
		return fmt.Sprintf("%s (%s)", Version, Commit)
	default:
		return Version
	}
}
