package session

import "strings"

// Scheme classifies how an endpoint argument should be reached (spec §6).
type Scheme int

const (
	SchemeLocal Scheme = iota
	SchemeDaemon
	SchemeRemoteShell
)

// Endpoint is a parsed source/destination argument.
type Endpoint struct {
	Scheme Scheme
	User   string // remote-shell only, empty when unspecified
	Host   string
	Path   string // local path, or the module-relative path for daemon mode
	Module string // daemon mode: the first path component, resolved against the module map
}

// ParseEndpoint classifies raw per spec §6's three path schemes:
// "host::path" (daemon), "[user@]host:path" (remote shell), else local.
func ParseEndpoint(raw string) Endpoint {
	if idx := strings.Index(raw, "::"); idx >= 0 {
		host := raw[:idx]
		rest := strings.TrimPrefix(raw[idx+2:], "/")
		module, path, _ := strings.Cut(rest, "/")
		return Endpoint{Scheme: SchemeDaemon, Host: host, Module: module, Path: path}
	}

	// A single colon only counts as remote-shell syntax when it appears
	// before the first path separator (so "C:\foo" on Windows-style input,
	// and any local path containing a literal colon after a slash, stay
	// local). This mirrors rsync(1)'s own heuristic.
	if idx := strings.Index(raw, ":"); idx >= 0 && !strings.ContainsRune(raw[:idx], '/') {
		hostPart := raw[:idx]
		path := raw[idx+1:]
		user, host, hasUser := strings.Cut(hostPart, "@")
		if !hasUser {
			host = hostPart
			user = ""
		}
		return Endpoint{Scheme: SchemeRemoteShell, User: user, Host: host, Path: path}
	}

	return Endpoint{Scheme: SchemeLocal, Path: raw}
}

// IsRemote reports whether e requires a network/subprocess transport.
func (e Endpoint) IsRemote() bool { return e.Scheme != SchemeLocal }
