/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version reports build information.
package version

import (
	"fmt"
	"runtime"
)

// Version is the current version of Grimnir Kiosk.
// This is set at build time via ldflags:
//
//	-X github.com/friendsincode/grimnir_kiosk/internal/version.Version=X.Y.Z
var Version = "0.4.0"

// Commit and BuildDate are also set via ldflags.
var (
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Info is the build description printed by the CLI and logged on boot.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the build information of the running binary.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func (i Info) String() string {
	return fmt.Sprintf("grimnirkiosk %s (commit %s, built %s, %s %s)", i.Version, i.Commit, i.BuildDate, i.GoVersion, i.Platform)
}
