// Package filelist builds and compares the per-root file inventories that
// drive a transfer (spec §4.6): a recursive or single-level walk of each
// source root, and a differ that classifies destination entries as
// missing, extra or modified relative to the source.
package filelist

import "github.com/TriForMine/mrsync/internal/protocol"

// Entry is one file or directory discovered under a source root.
type Entry struct {
	Kind         protocol.Kind
	SourceIndex  int
	RelativePath string
	Info         protocol.FileInfo
}

// ToWire converts Entry to its wire representation.
func (e Entry) ToWire() protocol.FileListEntry {
	info := e.Info
	return protocol.FileListEntry{
		Kind:         e.Kind,
		SourceIndex:  e.SourceIndex,
		RelativePath: e.RelativePath,
		Info:         &info,
	}
}

// FromWire converts a wire entry back into an Entry.
func FromWire(w protocol.FileListEntry) Entry {
	e := Entry{Kind: w.Kind, SourceIndex: w.SourceIndex, RelativePath: w.RelativePath}
	if w.Info != nil {
		e.Info = *w.Info
	}
	return e
}

// List is an ordered collection of Entry, keyed for lookup by relative
// path during diffing.
type List []Entry

// ByPath indexes entries by RelativePath. Later entries win on collision,
// which cannot happen for well-formed walks (distinct relative paths).
func (l List) ByPath() map[string]Entry {
	m := make(map[string]Entry, len(l))
	for _, e := range l {
		m[e.RelativePath] = e
	}
	return m
}
