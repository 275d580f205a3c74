// Package version reports the build version of notifyd.
//
// Values are set at link time:
//
//	go build -ldflags "-X github.com/kbukum/notify/version.Version=1.4.0 -X github.com/kbukum/notify/version.GitCommit=$(git rev-parse HEAD)"
package version

import (
	"runtime/debug"
)

// Set at build time using -ldflags.
var (
	Version   = "dev"
	GitCommit = ""
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// Get returns the linked Version. A dev build falls back to the module
// version and VCS revision recorded by the toolchain.
func Get() string {
	v := Version
	commit := GitCommit
	if info, ok := readBuildInfo(); ok {
		if v == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			v = info.Main.Version
		}
		if commit == "" {
			commit = setting(info, "vcs.revision")
		}
	}
	if v == "dev" && commit != "" {
		return v + "-" + short(commit)
	}
	return v
}

func setting(info *debug.BuildInfo, key string) string {
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}

func short(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}
