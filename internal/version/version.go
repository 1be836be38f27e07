// Package version holds build metadata injected by the linker:
//
//	go build -ldflags "-X github.com/dkoosis/conform/internal/version.Version=v1.2.0"
package version

import "fmt"

var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildDate  = "unknown"
)

// String renders the metadata as printed by "conform version".
func String() string {
	return fmt.Sprintf("conform version %s\nCommit: %s\nBuilt: %s\n", Version, CommitHash, BuildDate)
}
