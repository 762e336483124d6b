package main

import (
	"os/exec"
	"runtime/debug"
	"strings"
	"time"
)

// Set with -ldflags "-X main.commit=... -X main.buildDate=..." in release
// builds; otherwise filled from VCS build info or git.
var (
	commit    = "dev"
	buildDate = ""
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		commit, buildDate = fromBuildInfo(info.Settings, commit, buildDate)
	}
	if commit == "dev" {
		if c, err := exec.Command("git", "rev-parse", "--short", "HEAD").Output(); err == nil {
			commit = strings.TrimSpace(string(c))
		}
	}
	if buildDate == "" {
		buildDate = time.Now().Format("2006-01-02")
	}
}

// fromBuildInfo fills unset values from the vcs.* build settings.
func fromBuildInfo(settings []debug.BuildSetting, rev, date string) (string, string) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if rev == "dev" && s.Value != "" {
				rev = s.Value
				if len(rev) > 7 {
					rev = rev[:7]
				}
			}
		case "vcs.time":
			if date == "" && s.Value != "" {
				if t, err := time.Parse(time.RFC3339, s.Value); err == nil {
					date = t.Format("2006-01-02")
				}
			}
		}
	}
	return rev, date
}
