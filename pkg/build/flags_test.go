// SPDX-License-Identifier: MIT
package build

import (
	"os"
	"strings"
	"testing"
)

func TestMain(m *testing.M) {
	origName, origTime, origCommit, origVersion := buildName, buildTime, buildCommit, buildVersion
	origInfo := info

	exitCode := m.Run()

	buildName, buildTime, buildCommit, buildVersion = origName, origTime, origCommit, origVersion
	info = origInfo
	os.Exit(exitCode)
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name        string
		buildName   string
		buildTime   string
		buildCommit string
		buildVer    string
		wantErrMsgs []string
	}{
		{"Missing BuildName", "", "2025-04-13", "abcdef123", "v1.0.0", []string{"BuildName is required"}},
		{"Missing BuildTime", "testapp", "", "abcdef123", "v1.0.0", []string{"BuildTime is required"}},
		{"Missing BuildCommit", "testapp", "2025-04-13", "", "v1.0.0", []string{"BuildCommit is required"}},
		{"Missing BuildVersion", "testapp", "2025-04-13", "abcdef123", "", []string{"BuildVersion is required"}},
		{"Unstamped", "", "", "", "", []string{"BuildName", "BuildTime", "BuildCommit", "BuildVersion"}},
		{"Success Case", "testapp", "2025-04-13", "abcdef123", "v1.0.0", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buildName = tt.buildName
			buildTime = tt.buildTime
			buildCommit = tt.buildCommit
			buildVersion = tt.buildVer

			err := Initialize()
			got := Get()

			if len(tt.wantErrMsgs) > 0 {
				if err == nil {
					t.Fatalf("Initialize() expected error, got nil")
				}
				for _, msg := range tt.wantErrMsgs {
					if !strings.Contains(err.Error(), msg) {
						t.Errorf("Initialize() error = %v, want it to mention %q", err, msg)
					}
				}
			} else if err != nil {
				t.Fatalf("Initialize() unexpected error: %v", err)
			}

			want := func(stamped, field string) string {
				if stamped == "" {
					return field
				}
				return stamped
			}
			if got.Name != want(tt.buildName, defaultName) {
				t.Errorf("Name = %q", got.Name)
			}
			if got.Time != want(tt.buildTime, devValue) {
				t.Errorf("Time = %q", got.Time)
			}
			if got.Commit != want(tt.buildCommit, devValue) {
				t.Errorf("Commit = %q", got.Commit)
			}
			if got.Version != want(tt.buildVer, devValue) {
				t.Errorf("Version = %q", got.Version)
			}
			if got.Description == "" {
				t.Error("Description is empty")
			}
		})
	}
}

func TestInfoString(t *testing.T) {
	i := Info{Name: "audioviz", Version: "v1.0.0", Commit: "abc", Time: "2025-04-13"}
	if got, want := i.String(), "audioviz v1.0.0 (commit abc, built 2025-04-13)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
