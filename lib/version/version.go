// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports the build of a scenesync binary.
//
// Release builds inject values with -ldflags:
//
//	go build -ldflags "-X github.com/bureau-foundation/scenesync/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Without them, the VCS stamp the Go toolchain embeds is used.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set via -ldflags.
var (
	GitCommit = ""
	GitDirty  = ""
	BuildTime = ""
	Version   = "0.1.0-dev"
)

// Info returns "<version> (<commit>[-dirty], <time>)".
func Info() string {
	commit, dirty, buildTime := stamp()
	suffix := ""
	if dirty {
		suffix = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, commit, suffix, buildTime)
}

// Full is Info plus the Go version and platform.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// stamp prefers ldflags values and falls back to debug.BuildInfo.
func stamp() (commit string, dirty bool, buildTime string) {
	commit, buildTime = GitCommit, BuildTime
	dirty = GitDirty == "true"
	if commit != "" {
		if buildTime == "" {
			buildTime = "unknown"
		}
		return commit, dirty, buildTime
	}

	commit, buildTime = "unknown", "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return commit, dirty, buildTime
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			commit = setting.Value
			if len(commit) > 12 {
				commit = commit[:12]
			}
		case "vcs.time":
			buildTime = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return commit, dirty, buildTime
}
