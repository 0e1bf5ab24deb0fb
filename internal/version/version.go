// Package version holds build information injected with ldflags.
package version

import "fmt"

// These variables are set at build time via ldflags.
var (
	// Release is the release version (e.g., "v1.0.0-abc1234").
	Release = "dev"
	// GitCommit is the short git commit hash.
	GitCommit = "unknown"
)

// GetRelease returns the release version.
func GetRelease() string {
	return Release
}

// GetGitCommit returns the git commit hash.
func GetGitCommit() string {
	return GitCommit
}

// UserAgent identifies the decoder in outgoing RPC requests.
func UserAgent() string {
	return fmt.Sprintf("structlog-decoder/%s", Release)
}
