// Package version carries build metadata injected with -ldflags, e.g.
//
//	-X github.com/ManuGH/mediaconv/internal/version.Version=v1.0.0
package version

import "fmt"

var (
	// Version is the release tag, or "dev" for local builds.
	Version = "dev"

	// Commit is the git short hash of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)

// String formats the metadata for `mediaconv version`.
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date)
}
