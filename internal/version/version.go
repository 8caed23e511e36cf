// Package version reports the build of the demosnippet binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string    `json:"version" yaml:"version"`
	GitCommit string    `json:"git_commit" yaml:"git_commit"`
	Modified  bool      `json:"modified,omitempty" yaml:"modified,omitempty"`
	BuildTime time.Time `json:"build_time" yaml:"build_time"`
	GoVersion string    `json:"go_version" yaml:"go_version"`
	Platform  string    `json:"platform" yaml:"platform"`
}

// These variables are set at build time using -ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	// BuildTime is RFC3339.
	BuildTime = "unknown"
)

// readSettings is replaced in tests.
var readSettings = func() map[string]string {
	settings := make(map[string]string)
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return settings
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		settings["main.version"] = v
	}
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}
	return settings
}

// GetBuildInfo returns the build information, preferring ldflags values
// over the module build settings.
func GetBuildInfo() *BuildInfo {
	settings := readSettings()

	info := &BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		Modified:  settings["vcs.modified"] == "true",
		BuildTime: parseTime(BuildTime),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	if info.GitCommit == "" || info.GitCommit == "unknown" {
		if rev, ok := settings["vcs.revision"]; ok {
			info.GitCommit = rev
		} else {
			info.GitCommit = "unknown"
		}
	}
	if info.BuildTime.IsZero() {
		info.BuildTime = parseTime(settings["vcs.time"])
	}
	if info.Version == "" || info.Version == "dev" {
		switch {
		case settings["main.version"] != "":
			info.Version = settings["main.version"]
		case len(info.GitCommit) >= 7 && info.GitCommit != "unknown":
			info.Version = "dev-" + info.GitCommit[:7]
		default:
			info.Version = "dev"
		}
	}

	return info
}

// GetShortVersion returns a short version string suitable for display
func GetShortVersion() string {
	info := GetBuildInfo()
	if strings.HasPrefix(info.Version, "dev") || info.GitCommit == "unknown" || len(info.GitCommit) < 7 {
		return info.Version
	}
	return fmt.Sprintf("%s (%s)", info.Version, info.GitCommit[:7])
}

// GetDetailedVersion returns one line per piece of build information
func GetDetailedVersion() string {
	info := GetBuildInfo()

	parts := []string{"Version: " + info.Version}
	if info.GitCommit != "unknown" {
		commit := info.GitCommit
		if info.Modified {
			commit += " (modified)"
		}
		parts = append(parts, "Commit: "+commit)
	}
	if !info.BuildTime.IsZero() {
		parts = append(parts, "Built: "+info.BuildTime.Format(time.RFC3339))
	}
	parts = append(parts, "Go: "+info.GoVersion, "Platform: "+info.Platform)

	return strings.Join(parts, "\n")
}

// IsRelease returns true if this is a release build (not dev)
func IsRelease() bool {
	return !strings.HasPrefix(GetBuildInfo().Version, "dev")
}

func parseTime(s string) time.Time {
	if s == "" || s == "unknown" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
