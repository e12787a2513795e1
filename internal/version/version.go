// Package version holds build information injected at link time:
//
//	go build -ldflags "-X github.com/arthur-debert/arbor/internal/version.Version=v1.2.0"
package version

import "fmt"

// Build information set by ldflags
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String returns a one-line build description.
func String() string {
	return fmt.Sprintf("%s (%s, %s)", Version, Commit, Date)
}
