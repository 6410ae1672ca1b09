// SPDX-License-Identifier: MIT
//
// Package build exposes the metadata stamped into the binary at link time:
//
//	go build -ldflags "-X audioviz/pkg/build.buildVersion=0.3.0 \
//	    -X audioviz/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	    -X audioviz/pkg/build.buildTime=$(date -u +%FT%TZ)"
//
// Unstamped builds (go run, go test) report development defaults.
package build

import (
	"errors"
	"fmt"
)

const (
	defaultName        = "audioviz"
	defaultDescription = "Play audio files and drive real-time visualizers from their spectrum"
	devValue           = "dev"
)

// Info is the build metadata.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// String formats the info for the version command.
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

// Populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
)

var info = devInfo()

func devInfo() Info {
	return Info{
		Name:        defaultName,
		Description: defaultDescription,
		Time:        devValue,
		Commit:      devValue,
		Version:     devValue,
	}
}

// Initialize copies the stamped values into Info. Any value that was not
// stamped keeps its development default and is reported in the returned
// error, which callers may treat as a warning.
func Initialize() error {
	info = devInfo()

	var errs []error
	set := func(dst *string, v, flag string) {
		if v == "" {
			errs = append(errs, fmt.Errorf("%s is required", flag))
			return
		}
		*dst = v
	}
	set(&info.Name, buildName, "BuildName")
	set(&info.Time, buildTime, "BuildTime")
	set(&info.Commit, buildCommit, "BuildCommit")
	set(&info.Version, buildVersion, "BuildVersion")

	return errors.Join(errs...)
}

// Get returns the current build information.
func Get() Info {
	return info
}
