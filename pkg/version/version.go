// Package version holds build-time metadata injected via linker flags
// (-ldflags "-X github.com/interdex-project/interdex/pkg/version.Version=...").
package version

import "fmt"

// Version, Commit, and Date are populated at build time via -ldflags. They
// default to placeholder values for `go run` / unflagged builds.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String renders the build metadata as a single human-readable line, e.g.
// "interdex v0.3.0 (commit a1b2c3d, built 2026-01-15T10:00:00Z)".
func String() string {
	return fmt.Sprintf("interdex %s (commit %s, built %s)", Version, Commit, Date)
}
