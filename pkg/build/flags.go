// SPDX-License-Identifier: MIT
//
// Package build exposes the build metadata embedded with linker flags:
//
//	go build -ldflags "-X visbridge/pkg/build.buildName=visbridge \
//	  -X visbridge/pkg/build.buildVersion=0.3.0 ..."
//
// Development builds carry no flags; Initialize then falls back to the VCS
// stamp the Go toolchain records in the binary.
package build

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
)

// Description is the one-line summary shown in the CLI help.
const Description = "Capture audio, analyse it into spectrum bars and stream them to viewers"

// Info describes the running binary.
type Info struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

// String formats the info for the version command.
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

// Package-level variables for build information. These are populated by -ldflags
// during compilation.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = defaultInfo()
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

func defaultInfo() *Info {
	return &Info{
		Name:    "visbridge",
		Time:    "unknown",
		Commit:  "unknown",
		Version: "dev",
	}
}

// Initialize copies the ldflags values into the build info. Missing values
// are reported in the returned error; the info then keeps its defaults,
// filled in from the embedded VCS stamp where one exists.
func Initialize() error {
	var missing []string
	set := func(dst *string, val, name string) {
		if val == "" {
			missing = append(missing, name)
			return
		}
		*dst = val
	}
	set(&buildFlags.Name, buildName, "BuildName")
	set(&buildFlags.Time, buildTime, "BuildTime")
	set(&buildFlags.Commit, buildCommit, "BuildCommit")
	set(&buildFlags.Version, buildVersion, "BuildVersion")

	if len(missing) == 0 {
		return nil
	}
	fillFromVCS(buildFlags)
	return errors.New(strings.Join(missing, ", ") + " not set")
}

// fillFromVCS replaces unknown fields with the toolchain's build stamp.
func fillFromVCS(info *Info) {
	bi, ok := readBuildInfo()
	if !ok {
		return
	}
	if v := bi.Main.Version; v != "" && v != "(devel)" && buildVersion == "" {
		info.Version = v
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if buildCommit == "" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if buildTime == "" {
				info.Time = s.Value
			}
		}
	}
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *Info {
	return buildFlags
}
