// SPDX-License-Identifier: MIT
package build

import (
	"os"
	"strings"
	"testing"
)

var (
	origName    string
	origTime    string
	origCommit  string
	origVersion string
	origFlags   ldFlags
)

func TestMain(m *testing.M) {
	origName = buildName
	origTime = buildTime
	origCommit = buildCommit
	origVersion = buildVersion
	if buildFlags != nil {
		origFlags = *buildFlags
	}

	exitCode := m.Run()

	buildName = origName
	buildTime = origTime
	buildCommit = origCommit
	buildVersion = origVersion
	if buildFlags != nil {
		*buildFlags = origFlags
	}

	os.Exit(exitCode)
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name        string
		buildName   string
		buildTime   string
		buildCommit string
		buildVer    string
		wantErrMsg  string
		wantName    string
		wantVersion string
	}{
		{
			"Development build",
			"", "", "", "",
			"missing [BuildTime BuildCommit BuildVersion]",
			"voicefft", "dev",
		},
		{
			"Missing BuildTime",
			"testapp", "", "abcdef123", "v1.0.0",
			"missing [BuildTime]",
			"testapp", "v1.0.0",
		},
		{
			"Missing BuildCommit",
			"", "2025-04-13", "", "v1.0.0",
			"missing [BuildCommit]",
			"voicefft", "v1.0.0",
		},
		{
			"Missing BuildVersion",
			"testapp", "2025-04-13", "abcdef123", "",
			"missing [BuildVersion]",
			"testapp", "dev",
		},
		{
			"Success Case",
			"testapp", "2025-04-13", "abcdef123", "v1.0.0",
			"",
			"testapp", "v1.0.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buildFlags = defaultFlags()

			buildName = tt.buildName
			buildTime = tt.buildTime
			buildCommit = tt.buildCommit
			buildVersion = tt.buildVer

			err := Initialize()

			if tt.wantErrMsg != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErrMsg) {
					t.Errorf("Initialize() error = %v, want %q", err, tt.wantErrMsg)
				}
			} else if err != nil {
				t.Errorf("Initialize() unexpected error: %v", err)
			}

			if buildFlags.Name != tt.wantName {
				t.Errorf("buildFlags.Name = %v, want %v", buildFlags.Name, tt.wantName)
			}
			if buildFlags.Version != tt.wantVersion {
				t.Errorf("buildFlags.Version = %v, want %v", buildFlags.Version, tt.wantVersion)
			}
			if tt.buildCommit != "" && buildFlags.Commit != tt.buildCommit {
				t.Errorf("buildFlags.Commit = %v, want %v", buildFlags.Commit, tt.buildCommit)
			}
		})
	}
}

func TestGetBuildFlags(t *testing.T) {
	expected := ldFlags{
		Name:    "testapp",
		Time:    "2025-04-13",
		Commit:  "abcdef123",
		Version: "v1.0.0",
	}
	buildFlags = &expected

	flags := GetBuildFlags()

	if flags.Name != expected.Name ||
		flags.Time != expected.Time ||
		flags.Commit != expected.Commit ||
		flags.Version != expected.Version {
		t.Errorf("GetBuildFlags() = %+v, want %+v", flags, expected)
	}
	if got := flags.String(); got != "v1.0.0 (commit abcdef123, built 2025-04-13)" {
		t.Errorf("String() = %q", got)
	}
}
