//go:build !linux

package daemon

import "github.com/rs/zerolog"

// DropPrivileges is a no-op on platforms without POSIX setuid/setgid
// semantics identical to Linux's.
func DropPrivileges(log zerolog.Logger) error {
	log.Warn().Msg("privilege drop is not implemented on this platform")
	return nil
}
