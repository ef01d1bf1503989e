// Package version carries the build metadata stamped in with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/MeKo-Tech/cardscan/internal/version.Version=v1.2.0"
package version

import "fmt"

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns the version, commit and build date.
func Info() (string, string, string) {
	return Version, GitCommit, BuildDate
}

// String formats the build metadata on one line.
func String() string {
	return fmt.Sprintf("cardscan %s (commit %s, built %s)", Version, GitCommit, BuildDate)
}
