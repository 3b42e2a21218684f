// Package buildinfo reports which concierge build is running. Release
// builds stamp the variables below with -ldflags; plain `go build`
// binaries fall back to the VCS data the Go toolchain embeds.
package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// Stamped at release time, e.g.
//
//	-ldflags "-X github.com/cenourinhas/concierge/internal/buildinfo.Version=v1.2.0"
var (
	Version   = "dev"
	GitCommit = ""
	BuildTime = ""
)

var startTime = time.Now()

// Build describes the running binary. Every field is a string so the
// struct serializes the same way in the CLI and on /v1/version.
type Build struct {
	Version   string `json:"version"`
	Commit    string `json:"git_commit"`
	Modified  string `json:"modified,omitempty"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	Uptime    string `json:"uptime"`
}

// Current returns the metadata of the running binary.
func Current() Build {
	b := Build{
		Version:   Version,
		Commit:    GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Uptime:    Uptime().String(),
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		applyVCS(&b, info.Settings)
	}
	if b.Commit == "" {
		b.Commit = "unknown"
	}
	if b.BuildTime == "" {
		b.BuildTime = "unknown"
	}
	return b
}

// applyVCS fills the fields ldflags left empty from the toolchain's
// vcs.* build settings.
func applyVCS(b *Build, settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if b.Commit == "" {
				b.Commit = shortRevision(s.Value)
			}
		case "vcs.time":
			if b.BuildTime == "" {
				b.BuildTime = s.Value
			}
		case "vcs.modified":
			if s.Value == "true" {
				b.Modified = "true"
			}
		}
	}
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

// Uptime is the time since the process started, to the second.
func Uptime() time.Duration {
	return time.Since(startTime).Truncate(time.Second)
}

// String is the one-line banner printed by `concierge version`.
func (b Build) String() string {
	s := fmt.Sprintf("Concierge %s (%s) built %s", b.Version, b.Commit, b.BuildTime)
	if b.Modified != "" {
		s += " [modified]"
	}
	return s
}

// UserAgent is the User-Agent sent on every outbound HTTP request.
func UserAgent() string {
	return fmt.Sprintf("Concierge/%s (+https://www.cenourinhas.com.br)", Version)
}
