package filelist

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/TriForMine/mrsync/internal/checksum"
	"github.com/TriForMine/mrsync/internal/protocol"
)

// WalkOptions controls one source root's inventory build (spec §4.6).
type WalkOptions struct {
	Recursive bool
	DirsOnly  bool // single-level walk: root entry plus its immediate children
	Attrs     protocol.Attr
}

// Build walks root (a configured source path, trailing slash significant
// per §4.9: "src/" walks its contents, "src" also emits the root entry
// itself) and returns its Entry list with SourceIndex stamped on every
// entry.
func Build(root string, sourceIndex int, opts WalkOptions) (List, error) {
	includeRootEntry := !strings.HasSuffix(root, string(filepath.Separator)) && !strings.HasSuffix(root, "/")
	cleanRoot := filepath.Clean(root)

	info, err := os.Lstat(cleanRoot)
	if err != nil {
		return nil, fmt.Errorf("filelist: stat %s: %w", cleanRoot, err)
	}
	if !info.IsDir() {
		entry, err := buildEntry(cleanRoot, "", sourceIndex, info, opts.Attrs)
		if err != nil {
			return nil, err
		}
		return List{entry}, nil
	}

	var entries List
	if includeRootEntry {
		entry, err := buildEntry(cleanRoot, "", sourceIndex, info, opts.Attrs)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	walkFn := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == cleanRoot {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		rel, err := filepath.Rel(cleanRoot, path)
		if err != nil {
			return fmt.Errorf("filelist: relative path for %s: %w", path, err)
		}
		rel = filepath.ToSlash(rel)

		if opts.DirsOnly && strings.Contains(rel, "/") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return fmt.Errorf("filelist: info for %s: %w", path, err)
		}
		entry, err := buildEntry(path, rel, sourceIndex, fi, opts.Attrs)
		if err != nil {
			return err
		}
		entries = append(entries, entry)

		if !opts.Recursive && fi.IsDir() && path != cleanRoot {
			return filepath.SkipDir
		}
		return nil
	}

	if err := filepath.WalkDir(cleanRoot, walkFn); err != nil {
		return nil, fmt.Errorf("filelist: walking %s: %w", cleanRoot, err)
	}
	return entries, nil
}

func buildEntry(path, rel string, sourceIndex int, fi os.FileInfo, attrs protocol.Attr) (Entry, error) {
	kind := protocol.KindFile
	if fi.IsDir() {
		kind = protocol.KindDirectory
	}

	info := protocol.FileInfo{}
	if attrs.Has(protocol.AttrPermissions) {
		info.WithMode(uint32(fi.Mode().Perm()))
	}
	if attrs.Has(protocol.AttrTimes) {
		mt := fi.ModTime().Unix()
		info.WithTimes(mt, mt, mt)
	}
	if kind == protocol.KindFile {
		if attrs.Has(protocol.AttrSize) {
			info.WithSize(fi.Size())
		}
		if attrs.Has(protocol.AttrHardLinks) {
			if n, err := hardLinkCount(path); err == nil {
				info.WithLinkCount(n)
			}
		}
		if attrs.Has(protocol.AttrChecksum) {
			data, err := os.ReadFile(path)
			if err != nil {
				return Entry{}, fmt.Errorf("filelist: reading %s for checksum: %w", path, err)
			}
			info.WithChecksum(checksum.Compute(data).Sum())
		}
	}

	return Entry{
		Kind:         kind,
		SourceIndex:  sourceIndex,
		RelativePath: rel,
		Info:         info,
	}, nil
}
