// Package version holds build metadata for mmdesk.
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Build metadata, set with -ldflags "-X github.com/mudamudi/mmdesk/internal/version.Version=...".
//
//nolint:gochecknoglobals // Set by the linker
var (
	Version   = "dev"
	Commit    = ""
	BuildDate = ""
)

// devVersionString marks an untagged build.
const devVersionString = "dev"

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the build metadata of the running binary.
func Get() Info {
	return Info{
		Version:   NormalizeVersion(Version),
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String renders the info on one line.
func (i Info) String() string {
	s := "mmdesk " + i.Version
	if i.Commit != "" {
		s += " (" + shortCommit(i.Commit) + ")"
	}
	if i.BuildDate != "" {
		s += " built " + i.BuildDate
	}
	return fmt.Sprintf("%s %s %s", s, i.GoVersion, i.Platform)
}

// UserAgent returns the User-Agent sent to the API.
func UserAgent() string {
	return "mmdesk/" + NormalizeVersion(Version)
}

// IsDevBuild reports whether v is an untagged development build.
func IsDevBuild(v string) bool {
	v = NormalizeVersion(v)
	return v == devVersionString || v == "" || isCommitHash(v)
}

// NormalizeVersion removes the 'v' prefix, surrounding whitespace, and any
// pre-release or build metadata suffix (e.g. -rc1, -dirty, +build).
func NormalizeVersion(version string) string {
	if idx := strings.IndexAny(version, "-+"); idx != -1 {
		version = version[:idx]
	}

	for {
		trimmed := strings.TrimSpace(version)
		trimmed = strings.TrimLeft(trimmed, "v")
		if trimmed == version {
			break
		}
		version = trimmed
	}

	return version
}

func shortCommit(c string) string {
	if len(c) > 7 && isCommitHash(c) {
		return c[:7]
	}
	return c
}

// isCommitHash reports whether s looks like a git commit hash: 7-40 hex
// characters with at least one letter.
func isCommitHash(s string) bool {
	s = strings.TrimSuffix(s, "-dirty")
	if len(s) < 7 || len(s) > 40 {
		return false
	}

	hasLetter := false
	for _, c := range s {
		isDigit := c >= '0' && c <= '9'
		isHexLetter := (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
		if !isDigit && !isHexLetter {
			return false
		}
		if isHexLetter {
			hasLetter = true
		}
	}

	return hasLetter
}
