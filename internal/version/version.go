// Package version reports the salesdash build: the ldflags version and the
// VCS details embedded by the Go toolchain.
package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// These are set via ldflags at build time:
//
//	go build -ldflags "-X salesdash/internal/version.Version=v1.2.0 -X salesdash/internal/version.BuildTime=..."
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Name is the program name used in version output
const Name = "salesdash"

// Info contains version and build information
type Info struct {
	Version     string `json:"version"`
	BuildTime   string `json:"buildTime"`
	GoVersion   string `json:"goVersion"`
	VCSRevision string `json:"vcsRevision,omitempty"`
	VCSTime     string `json:"vcsTime,omitempty"`
	VCSModified bool   `json:"vcsModified"`
}

// Get returns the current version and build information
func Get() Info {
	info := Info{
		Version:   Version,
		BuildTime: BuildTime,
	}

	if buildInfo, ok := readBuildInfo(); ok {
		info.GoVersion = buildInfo.GoVersion

		for _, setting := range buildInfo.Settings {
			switch setting.Key {
			case "vcs.revision":
				info.VCSRevision = setting.Value
			case "vcs.time":
				info.VCSTime = setting.Value
			case "vcs.modified":
				info.VCSModified = setting.Value == "true"
			}
		}
	}

	return info
}

// ShortRevision is the first 8 characters of the commit, marked when the tree was dirty
func (i Info) ShortRevision() string {
	rev := i.VCSRevision
	if len(rev) > 8 {
		rev = rev[:8]
	}
	if rev != "" && i.VCSModified {
		rev += " (modified)"
	}
	return rev
}

// String returns a human-readable version string
func (i Info) String() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("%s %s", Name, i.Version))

	if i.BuildTime != "unknown" {
		parts = append(parts, fmt.Sprintf("Built: %s", i.BuildTime))
	}

	parts = append(parts, fmt.Sprintf("Go: %s", i.GoVersion))

	if rev := i.ShortRevision(); rev != "" {
		parts = append(parts, fmt.Sprintf("Commit: %s", rev))
	}

	if i.VCSTime != "" {
		parts = append(parts, fmt.Sprintf("Committed: %s", i.VCSTime))
	}

	return strings.Join(parts, ", ")
}

// Check returns a warning when the build cannot be traced to a clean commit
func (i Info) Check() string {
	if i.VCSModified {
		return "WARNING: Binary built from modified source tree"
	}
	if i.VCSRevision == "" && i.Version == "dev" {
		return "WARNING: No version control information available (development build)"
	}
	return ""
}

// readBuildInfo is replaced in tests
var readBuildInfo = debug.ReadBuildInfo
