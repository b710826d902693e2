// Package pathresolve implements the target-path resolution rules of
// spec §4.9, shared by the receiver (resolving into the destination root)
// and the sender (resolving into a source root, roles mirror-inverted).
package pathresolve

import (
	"path"
	"strings"
)

// Resolve computes the on-disk path for a FileEntry's relative_path p,
// sourced from configured root sourceRoot (sources[s] in spec terms),
// joined under base (the destination root D, or a source root when the
// sender resolves its own files).
//
// p == "/" marks a directory-root target (spec §4.9); callers must treat
// the result as required to be a directory.
func Resolve(base, sourceRoot, p string) string {
	trailingSlash := strings.HasSuffix(sourceRoot, "/")

	if p == "" {
		if !trailingSlash {
			return path.Join(base, path.Base(path.Clean(sourceRoot)))
		}
		return base
	}

	if !trailingSlash {
		p = path.Join(path.Base(path.Clean(sourceRoot)), p)
	}
	return path.Join(base, p)
}
