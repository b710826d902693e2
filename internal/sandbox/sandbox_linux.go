//go:build linux

// Package sandbox restricts the process's file system access to the
// source and destination roots a transfer actually needs, using Landlock
// where the running kernel supports it.
package sandbox

import (
	"fmt"
	"log"

	"github.com/landlock-lsm/go-landlock/landlock"
)

// ExtraRules is set in tests to loosen the rule set (e.g. to allow writing
// temp files outside the destination root).
var ExtraRules func() []landlock.Rule

// dnsLookup files the Go resolver reads as of Go 1.23+.
var dnsLookup = []string{
	"/etc/resolv.conf",
	"/etc/hosts",
	"/etc/services",
	"/etc/nsswitch.conf",
}

var userLookup = []string{
	"/etc/passwd",
	"/etc/group",
}

// Restrict locks the process down to read-only access under roDirs (the
// configured source roots) and read-write access under rwDirs (the
// destination root), best-effort: on kernels without Landlock support this
// is a silent no-op, matching rsync's own posture of working without a
// sandbox when the OS doesn't offer one.
func Restrict(roDirs, rwDirs []string) error {
	extra := ExtraRules
	if extra == nil {
		extra = func() []landlock.Rule { return nil }
	}
	log.Printf("sandbox: restricting file system access (ro=%d, rw=%d)", len(roDirs), len(rwDirs))
	err := landlock.V3.BestEffort().RestrictPaths(
		append(extra(), []landlock.Rule{
			landlock.ROFiles(dnsLookup...).IgnoreIfMissing(),
			landlock.ROFiles(userLookup...).IgnoreIfMissing(),
			landlock.RODirs(roDirs...).IgnoreIfMissing(),
			landlock.RWDirs(rwDirs...).WithRefer(),
		}...)...)
	if err != nil {
		return fmt.Errorf("sandbox: landlock: %w", err)
	}
	return nil
}
