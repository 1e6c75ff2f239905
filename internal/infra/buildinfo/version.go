package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/yndnr/corslight-go/internal/protocol"
)

// Build-time variables (set via ldflags).
var (
	// Version is the semantic version.
	Version = "dev"

	// Commit is the git commit hash.
	Commit = "unknown"

	// BuildTime is the build timestamp.
	BuildTime = "unknown"

	// GoVersion is the Go version used to build.
	GoVersion = "unknown"
)

// Info contains build information.
type Info struct {
	Version     string `json:"version" yaml:"version"`
	Commit      string `json:"commit" yaml:"commit"`
	BuildTime   string `json:"build_time" yaml:"build_time"`
	GoVersion   string `json:"go_version" yaml:"go_version"`
	Platform    string `json:"platform" yaml:"platform"`
	WireVersion int    `json:"wire_version" yaml:"wire_version"`
}

// Get returns the build information.
func Get() Info {
	goVersion := GoVersion
	if goVersion == "unknown" {
		if bi, ok := debug.ReadBuildInfo(); ok && bi.GoVersion != "" {
			goVersion = bi.GoVersion
		} else {
			goVersion = runtime.Version()
		}
	}
	return Info{
		Version:     Version,
		Commit:      Commit,
		BuildTime:   BuildTime,
		GoVersion:   goVersion,
		Platform:    runtime.GOOS + "/" + runtime.GOARCH,
		WireVersion: protocol.WireVersion,
	}
}

// String returns a formatted version string.
func String() string {
	return fmt.Sprintf("%s (%s) built at %s, protocol v%d", Version, Commit, BuildTime, protocol.WireVersion)
}
