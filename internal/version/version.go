// Package version holds hfinfer build metadata, injected with ldflags:
//
//	go build -ldflags "-X github.com/jmylchreest/hfinfer/internal/version.Version=1.2.0 \
//	  -X github.com/jmylchreest/hfinfer/internal/version.Commit=$(git rev-parse --short HEAD)"
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	Dirty     = "false"
	BuildDate = "unknown"
)

// Info is the build metadata as a value, for structured output.
type Info struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	Dirty     bool   `json:"dirty" yaml:"dirty"`
	BuildDate string `json:"build_date" yaml:"build_date"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

// Get returns the current build metadata.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Dirty:     Dirty == "true",
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String returns the version, suffixed with -dirty for modified trees.
func String() string {
	if Dirty == "true" {
		return Version + "-dirty"
	}
	return Version
}

// UserAgent is sent with every outbound request.
func UserAgent() string {
	return "hfinfer/" + String()
}

// Full returns the multi-line form printed by `hfinfer version`.
func Full() string {
	info := Get()
	rows := [][2]string{
		{"Commit", info.Commit},
		{"Built", info.BuildDate},
		{"Go", info.GoVersion},
		{"Platform", info.Platform},
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "hfinfer %s", String())
	for _, r := range rows {
		fmt.Fprintf(&sb, "\n  %-9s %s", r[0]+":", r[1])
	}
	return sb.String()
}
