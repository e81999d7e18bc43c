// Package buildinfo carries version data stamped at link time:
//
//	go build -ldflags "-X slotting/internal/buildinfo.Version=v1.2.0 -X slotting/internal/buildinfo.Commit=$(git rev-parse HEAD)"
package buildinfo

import "runtime/debug"

var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

// Info returns the build metadata, falling back to the VCS revision
// recorded by the Go toolchain when Commit was not stamped.
func Info() map[string]string {
	commit := Commit
	if commit == "" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" {
					commit = s.Value
				}
			}
		}
	}
	return map[string]string{
		"version": Version,
		"commit":  commit,
		"builtAt": BuiltAt,
	}
}

// String is the one-line form printed by the CLI.
func String() string {
	i := Info()
	s := "slotting " + i["version"]
	if i["commit"] != "" {
		s += " (" + i["commit"] + ")"
	}
	if i["builtAt"] != "" {
		s += " built " + i["builtAt"]
	}
	return s
}
