//go:build linux

package daemon

import (
	"fmt"
	"syscall"

	"github.com/rs/zerolog"
)

// DropPrivileges relinquishes root after the daemon's listen socket is
// bound, so a compromised transfer handler cannot touch anything outside
// the module roots it was given (adapted from the teacher's maincmd
// privilege-drop step, generalized to run after net.Listen instead of
// after argument parsing).
func DropPrivileges(log zerolog.Logger) error {
	if syscall.Getuid() != 0 {
		return nil
	}

	log.Info().Msg("running as root (uid 0), dropping privileges to nobody (uid/gid 65534)")
	if err := syscall.Setgid(65534); err != nil {
		return fmt.Errorf("daemon: setgid(65534): %w", err)
	}
	if err := syscall.Setuid(65534); err != nil {
		return fmt.Errorf("daemon: setuid(65534): %w", err)
	}

	if err := syscall.Setgid(0); err == nil {
		return fmt.Errorf("daemon: unexpectedly able to re-gain gid 0 permission")
	}
	if err := syscall.Setuid(0); err == nil {
		return fmt.Errorf("daemon: unexpectedly able to re-gain uid 0 permission")
	}
	return nil
}
