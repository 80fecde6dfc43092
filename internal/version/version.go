// Package version reports build information for the ni binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// Info contains version and build information
type Info struct {
	Version   string    `json:"version" yaml:"version"`
	GitCommit string    `json:"git_commit" yaml:"git_commit"`
	BuildTime time.Time `json:"build_time" yaml:"build_time,omitempty"`
	GoVersion string    `json:"go_version" yaml:"go_version"`
	Platform  string    `json:"platform" yaml:"platform"`
	Dirty     bool      `json:"dirty,omitempty" yaml:"dirty,omitempty"`
}

// These variables are set at build time using -ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	// BuildTime is RFC3339
	BuildTime = "unknown"
)

// Get returns build information, falling back to the module build info
// embedded by the go tool when ldflags were not set.
func Get() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
	if t, err := time.Parse(time.RFC3339, BuildTime); err == nil {
		info.BuildTime = t
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			if info.GitCommit == "unknown" {
				info.GitCommit = setting.Value
			}
		case "vcs.time":
			if info.BuildTime.IsZero() {
				if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
					info.BuildTime = t
				}
			}
		case "vcs.modified":
			info.Dirty = setting.Value == "true"
		}
	}

	return info
}

// Short returns "version (commit7)" or just the version.
func (i Info) Short() string {
	if len(i.GitCommit) >= 7 && i.GitCommit != "unknown" {
		return fmt.Sprintf("%s (%s)", i.Version, i.GitCommit[:7])
	}
	return i.Version
}
