package filelist

import (
	"testing"

	"github.com/TriForMine/mrsync/internal/protocol"
)

func entry(path string, size, mtime int64) Entry {
	info := protocol.FileInfo{}
	info.WithSize(size).WithTimes(mtime, mtime, mtime)
	return Entry{
		Kind:         protocol.KindFile,
		RelativePath: path,
		Info:         info,
	}
}

func TestCompareClassifiesMissingModifiedUnchanged(t *testing.T) {
	src := List{
		entry("a.txt", 5, 100),
		entry("b.txt", 5, 100),
		entry("c.txt", 5, 100),
	}
	dst := List{
		entry("b.txt", 6, 100), // size differs -> modified
		entry("c.txt", 5, 100), // identical -> unchanged
		entry("d.txt", 5, 100), // extra
	}

	diffs, extra := Compare(src, dst, DiffOptions{})

	byPath := make(map[string]Diff, len(diffs))
	for _, d := range diffs {
		byPath[d.Entry.RelativePath] = d
	}

	if got := byPath["a.txt"].Status; got != Missing {
		t.Errorf("a.txt status = %v, want Missing", got)
	}
	if got := byPath["b.txt"].Status; got != Modified {
		t.Errorf("b.txt status = %v, want Modified", got)
	}
	if got := byPath["c.txt"].Status; got != Unchanged {
		t.Errorf("c.txt status = %v, want Unchanged", got)
	}
	if len(extra) != 1 || extra[0].RelativePath != "d.txt" {
		t.Errorf("extra = %v, want [d.txt]", extra)
	}
}

func TestCompareIgnoreExisting(t *testing.T) {
	src := List{entry("a.txt", 5, 100), entry("b.txt", 5, 100)}
	dst := List{entry("b.txt", 5, 100)}

	diffs, _ := Compare(src, dst, DiffOptions{IgnoreExist: true})
	if len(diffs) != 1 || diffs[0].Entry.RelativePath != "a.txt" {
		t.Errorf("diffs = %v, want only a.txt (new file)", diffs)
	}
}

func TestCompareExistingOnly(t *testing.T) {
	src := List{entry("a.txt", 5, 100), entry("b.txt", 5, 100)}
	dst := List{entry("b.txt", 9, 100)}

	diffs, _ := Compare(src, dst, DiffOptions{ExistingOnly: true})
	if len(diffs) != 1 || diffs[0].Entry.RelativePath != "b.txt" {
		t.Errorf("diffs = %v, want only b.txt (already exists)", diffs)
	}
}

func TestCompareExistingWinsOverIgnoreExisting(t *testing.T) {
	src := List{entry("a.txt", 5, 100), entry("b.txt", 5, 100)}
	dst := List{entry("b.txt", 9, 100)}

	diffs, _ := Compare(src, dst, DiffOptions{ExistingOnly: true, IgnoreExist: true})
	if len(diffs) != 1 || diffs[0].Entry.RelativePath != "b.txt" {
		t.Errorf("diffs = %v, want only b.txt; --existing should win", diffs)
	}
}

func TestCompareDirectoriesNeverModified(t *testing.T) {
	srcInfo, dstInfo := protocol.FileInfo{}, protocol.FileInfo{}
	srcInfo.WithTimes(1, 1, 1)
	dstInfo.WithTimes(2, 2, 2)
	src := List{{Kind: protocol.KindDirectory, RelativePath: "d", Info: srcInfo}}
	dst := List{{Kind: protocol.KindDirectory, RelativePath: "d", Info: dstInfo}}

	diffs, _ := Compare(src, dst, DiffOptions{})
	if len(diffs) != 1 || diffs[0].Status != Unchanged {
		t.Errorf("directory diff = %v, want Unchanged regardless of mtime", diffs)
	}
}
