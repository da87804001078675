// SPDX-License-Identifier: MIT
//
// Package build exposes the name, version, commit and build time embedded
// into the binary with linker flags, for example:
//
//	go build -ldflags "-X voicefft/pkg/build.buildVersion=0.1.0 -X voicefft/pkg/build.buildCommit=$(git rev-parse --short HEAD)"
//
// Development builds run without the flags and report "dev".
package build

import "fmt"

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// Package-level variables for build information. These are populated by -ldflags
// during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = defaultFlags()
)

func defaultFlags() *ldFlags {
	return &ldFlags{
		Name:        "voicefft",
		Description: "Real-time voice spectrum analyzer",
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
}

// Initialize validates and copies build information from ldflags variables
// into the buildFlags struct. Missing flags keep their development defaults
// and are reported in the returned error.
func Initialize() error {
	if buildName != "" {
		buildFlags.Name = buildName
	}

	var missing []string
	if buildTime == "" {
		missing = append(missing, "BuildTime")
	} else {
		buildFlags.Time = buildTime
	}
	if buildCommit == "" {
		missing = append(missing, "BuildCommit")
	} else {
		buildFlags.Commit = buildCommit
	}
	if buildVersion == "" {
		missing = append(missing, "BuildVersion")
	} else {
		buildFlags.Version = buildVersion
	}

	if len(missing) > 0 {
		return fmt.Errorf("development build, missing %v", missing)
	}
	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}

// String renders the build information for --version output.
func (f *ldFlags) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", f.Version, f.Commit, f.Time)
}
