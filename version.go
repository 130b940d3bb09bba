package ews

import (
	"fmt"

	"github.com/blang/semver"
)

// Version is a protocol version as sent in the RequestServerVersion header.
type Version string

// Known protocol versions, oldest first.
const (
	Exchange2007SP1 Version = "Exchange2007_SP1"
	Exchange2010    Version = "Exchange2010"
	Exchange2010SP1 Version = "Exchange2010_SP1"
	Exchange2010SP2 Version = "Exchange2010_SP2"
	Exchange2013    Version = "Exchange2013"
	Exchange2013SP1 Version = "Exchange2013_SP1"
	Exchange2016    Version = "Exchange2016"
)

// versionBuilds maps protocol versions to the server build line that
// introduced them. Ordering between versions is decided on these.
var versionBuilds = map[Version]semver.Version{
	Exchange2007SP1: {Major: 8, Minor: 1},
	Exchange2010:    {Major: 14, Minor: 0},
	Exchange2010SP1: {Major: 14, Minor: 1},
	Exchange2010SP2: {Major: 14, Minor: 2},
	Exchange2013:    {Major: 15, Minor: 0},
	Exchange2013SP1: {Major: 15, Minor: 0, Patch: 847},
	Exchange2016:    {Major: 15, Minor: 1},
}

// ParseVersion validates a version name.
func ParseVersion(s string) (Version, error) {
	v := Version(s)
	if _, ok := versionBuilds[v]; !ok {
		return "", fmt.Errorf("ews: unknown version %q", s)
	}
	return v, nil
}

// Build returns the server build line of the version. Unknown versions
// report the zero build and therefore sort before every known version.
func (v Version) Build() semver.Version {
	return versionBuilds[v]
}

// AtLeast reports whether v is the same as or newer than min.
// An empty min is satisfied by every version.
func (v Version) AtLeast(min Version) bool {
	if min == "" {
		return true
	}
	return v.Build().GTE(min.Build())
}

// String returns the wire name of the version.
func (v Version) String() string {
	return string(v)
}

// ServerVersionInfo is the server version reported in response headers.
type ServerVersionInfo struct {
	MajorVersion     int
	MinorVersion     int
	MajorBuildNumber int
	MinorBuildNumber int
	Version          Version
}

// Build returns the server build as a semantic version.
func (i ServerVersionInfo) Build() semver.Version {
	return semver.Version{
		Major: uint64(i.MajorVersion),
		Minor: uint64(i.MinorVersion),
		Patch: uint64(i.MajorBuildNumber),
	}
}

// Supports reports whether the server build is at least the build line of v.
func (i ServerVersionInfo) Supports(v Version) bool {
	return i.Build().GTE(v.Build())
}

// String returns the build in "major.minor.build.revision" form.
func (i ServerVersionInfo) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", i.MajorVersion, i.MinorVersion, i.MajorBuildNumber, i.MinorBuildNumber)
}
