package version

import (
	"fmt"
	"runtime"
)

// These variables are set at build time via -ldflags
var (
	Version   = "dev"     // -X tunnelout/internal/version.Version=v1.0.0
	BuildTime = "unknown" // -X tunnelout/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)
	GitCommit = "unknown" // -X tunnelout/internal/version.GitCommit=$(git rev-parse HEAD)
)

// BuildInfo contains complete build information
type BuildInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetBuildInfo returns complete build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String returns a human-readable version string
func (b BuildInfo) String() string {
	return fmt.Sprintf("tunnelout %s (%s, built %s, %s)", b.Version, b.GitCommit, b.BuildTime, b.Platform)
}
