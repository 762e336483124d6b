package main

import (
	"runtime/debug"
	"testing"
)

func TestFromBuildInfo(t *testing.T) {
	settings := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef"},
		{Key: "vcs.time", Value: "2024-05-10T08:30:00Z"},
	}
	rev, date := fromBuildInfo(settings, "dev", "")
	if rev != "0123456" || date != "2024-05-10" {
		t.Fatalf("got %s %s", rev, date)
	}
	rev, date = fromBuildInfo(settings, "v1.2.0", "2024-01-01")
	if rev != "v1.2.0" || date != "2024-01-01" {
		t.Fatalf("explicit values overridden: %s %s", rev, date)
	}
}
