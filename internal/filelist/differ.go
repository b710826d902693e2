package filelist

import "github.com/TriForMine/mrsync/internal/protocol"

// Status classifies a source Entry relative to the destination list.
type Status uint8

const (
	Missing Status = iota
	Modified
	Unchanged
)

// Diff is one source entry paired with its classification and, for
// Modified/Unchanged, the matching destination entry.
type Diff struct {
	Entry       Entry
	Status      Status
	Destination *Entry
}

// DiffOptions mirrors the CLI flags that affect modification detection
// (spec §4.6).
type DiffOptions struct {
	Checksum     bool // --checksum: compare full-file weak checksums
	IgnoreTimes  bool // --ignore-times: size-only unless checksums requested
	SizeOnly     bool
	ExistingOnly bool // --existing: only ever update files already on dest
	IgnoreExist  bool // --ignore-existing: never touch files already on dest
}

// Compare classifies every entry in src against dst (spec §4.6: MISSING,
// MODIFIED, or implicitly unchanged/ignored) and returns the destination
// entries with no corresponding source entry (candidates for --delete).
func Compare(src, dst List, opts DiffOptions) (diffs []Diff, extra List) {
	dstByPath := dst.ByPath()
	seen := make(map[string]bool, len(src))

	for _, e := range src {
		seen[e.RelativePath] = true
		d, ok := dstByPath[e.RelativePath]
		if !ok {
			// --existing wins when both --existing and --ignore-existing
			// are set (spec §9 open question): --existing, alone or
			// together with --ignore-existing, means "never create files
			// that don't already exist on the destination";
			// --ignore-existing alone still creates them.
			if opts.ExistingOnly {
				continue
			}
			diffs = append(diffs, Diff{Entry: e, Status: Missing})
			continue
		}
		if opts.IgnoreExist && !opts.ExistingOnly {
			continue
		}

		dd := d
		if e.Kind != protocol.KindDirectory && modified(e, d, opts) {
			// Directories are never classified MODIFIED (spec §4.6); an
			// existing directory is Unchanged, and the generator requests
			// nothing for it.
			diffs = append(diffs, Diff{Entry: e, Status: Modified, Destination: &dd})
		} else {
			diffs = append(diffs, Diff{Entry: e, Status: Unchanged, Destination: &dd})
		}
	}

	for _, e := range dst {
		if !seen[e.RelativePath] {
			extra = append(extra, e)
		}
	}
	return diffs, extra
}

func modified(src, dst Entry, opts DiffOptions) bool {
	if opts.Checksum {
		return src.Info.ChecksumVal() != dst.Info.ChecksumVal()
	}
	if src.Info.SizeVal() != dst.Info.SizeVal() {
		return true
	}
	if opts.SizeOnly || opts.IgnoreTimes {
		return false
	}
	return src.Info.MTimeVal() != dst.Info.MTimeVal()
}
