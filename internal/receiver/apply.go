// Package receiver implements the receiver state machine (spec §4.8): it
// owns the destination tree, drives an in-process generator, and applies
// FILE_DATA / FILE_DATA_OFFSET / DELETE_FILES instructions to disk.
package receiver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"

	"github.com/TriForMine/mrsync/internal/protocol"
)

// ApplyOptions mirrors the CLI flags that affect how FILE_DATA is applied
// (spec §4.8, §6).
type ApplyOptions struct {
	Perms     bool
	Times     bool
	HardLinks bool
	Force     bool // allow recursive delete of non-empty directories
}

// ApplyFileData handles one FILE_DATA message: creation if target is
// absent, in-place modification otherwise (spec §4.8 step 3).
func ApplyFileData(destRoot string, header *protocol.FileDataHeader, data []byte, opts ApplyOptions) error {
	name := header.Filename
	isDir := strings.HasSuffix(name, "/")
	target := filepath.Join(destRoot, filepath.FromSlash(strings.TrimSuffix(name, "/")))

	if isDir {
		return createDirectory(target)
	}

	fi, err := os.Lstat(target)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("receiver: stat %s: %w", target, err)
		}
		return createFile(target, header, data, opts)
	}
	if fi.IsDir() {
		if err := removeExisting(target, opts.Force); err != nil {
			return err
		}
		return createFile(target, header, data, opts)
	}
	return modifyFile(target, header, data, opts)
}

func createDirectory(target string) error {
	if fi, err := os.Lstat(target); err == nil && !fi.IsDir() {
		if err := os.Remove(target); err != nil {
			return fmt.Errorf("receiver: removing file in place of directory %s: %w", target, err)
		}
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("receiver: mkdir -p %s: %w", target, err)
	}
	return nil
}

func createFile(target string, header *protocol.FileDataHeader, data []byte, opts ApplyOptions) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("receiver: mkdir -p parent of %s: %w", target, err)
	}

	out, err := renameio.NewPendingFile(target, renameio.WithExistingPermissions())
	if err != nil {
		return fmt.Errorf("receiver: creating pending file for %s: %w", target, err)
	}
	defer out.Cleanup()

	if _, err := out.Write(data); err != nil {
		return fmt.Errorf("receiver: writing %s: %w", target, err)
	}
	applyMode(out.Name(), header, opts)
	if err := out.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("receiver: replacing %s: %w", target, err)
	}

	applyTimes(target, header, opts)
	if opts.HardLinks && header.Info != nil {
		linkHardLinks(target, header.Info.LinkNames)
	}
	return nil
}

func modifyFile(target string, header *protocol.FileDataHeader, data []byte, opts ApplyOptions) error {
	f, err := os.OpenFile(target, os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("receiver: opening %s for modification: %w", target, err)
	}
	defer f.Close()

	if _, err := f.WriteAt(data, int64(header.Start)); err != nil {
		return fmt.Errorf("receiver: writing %s at offset %d: %w", target, header.Start, err)
	}

	wantLen := int64(header.End - header.Start)
	if int64(len(data)) < wantLen || header.WholeFile {
		if err := f.Truncate(int64(header.Start) + int64(len(data))); err != nil {
			return fmt.Errorf("receiver: truncating %s: %w", target, err)
		}
	}
	f.Close()

	applyModeByPath(target, header, opts)
	applyTimes(target, header, opts)
	return nil
}

// ApplyOffset handles FILE_DATA_OFFSET (spec §4.8 step 4): shift bytes
// already present in the destination file. A positive offset vacates a
// hole at the front that gets zero-filled as a placeholder for a
// following FILE_DATA write; a negative offset (spec §4.1 Shrink tail
// case: the destination held stale leading bytes the source already
// dropped) leaves a stale tail that the transfer's closing truncate
// removes, so nothing needs zeroing there.
func ApplyOffset(destRoot, path string, start, end uint32, offset int32) error {
	target := filepath.Join(destRoot, filepath.FromSlash(path))

	f, err := os.OpenFile(target, os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("receiver: opening %s for FILE_DATA_OFFSET: %w", target, err)
	}
	defer f.Close()

	n := int64(end) - int64(start)
	buf := make([]byte, n)
	read, err := f.ReadAt(buf, int64(start))
	if err != nil && read == 0 {
		return fmt.Errorf("receiver: reading %s [%d,%d): %w", target, start, end, err)
	}
	buf = buf[:read]

	if _, err := f.WriteAt(buf, int64(start)+int64(offset)); err != nil {
		return fmt.Errorf("receiver: writing shifted bytes to %s: %w", target, err)
	}
	if offset > 0 {
		zeros := make([]byte, offset)
		if _, err := f.WriteAt(zeros, int64(start)); err != nil {
			return fmt.Errorf("receiver: zeroing vacated region of %s: %w", target, err)
		}
	}
	if int64(read) < n {
		if err := f.Truncate(int64(start) + int64(offset) + int64(read)); err != nil {
			return fmt.Errorf("receiver: truncating %s after short read: %w", target, err)
		}
	}
	return nil
}

// DeleteFiles handles DELETE_FILES (spec §4.8 step 5).
func DeleteFiles(destRoot string, paths []string, force bool) error {
	for _, p := range paths {
		target := filepath.Join(destRoot, filepath.FromSlash(p))
		if err := removeExisting(target, force); err != nil {
			return err
		}
	}
	return nil
}

func removeExisting(target string, force bool) error {
	fi, err := os.Lstat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("receiver: stat %s: %w", target, err)
	}
	if !fi.IsDir() {
		if err := os.Remove(target); err != nil {
			return fmt.Errorf("receiver: removing %s: %w", target, err)
		}
		return nil
	}
	entries, err := os.ReadDir(target)
	if err != nil {
		return fmt.Errorf("receiver: reading directory %s: %w", target, err)
	}
	if len(entries) > 0 && !force {
		return fmt.Errorf("receiver: %s is a non-empty directory, refusing without --force", target)
	}
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("receiver: removing directory %s: %w", target, err)
	}
	return nil
}

func applyMode(path string, header *protocol.FileDataHeader, opts ApplyOptions) {
	if !opts.Perms || header.Info == nil {
		return
	}
	_ = os.Chmod(path, os.FileMode(header.Info.ModeVal()))
}

func applyModeByPath(path string, header *protocol.FileDataHeader, opts ApplyOptions) {
	applyMode(path, header, opts)
}

func applyTimes(path string, header *protocol.FileDataHeader, opts ApplyOptions) {
	if header.Info == nil {
		return
	}
	mtime := time.Unix(header.Info.MTimeVal(), 0)
	atime := mtime
	if opts.Times {
		if header.Info.ATime != nil {
			atime = time.Unix(*header.Info.ATime, 0)
		}
	} else if fi, err := os.Stat(path); err == nil {
		atime = accessTime(fi)
	}
	_ = os.Chtimes(path, atime, mtime)
}

func linkHardLinks(target string, names []string) {
	dir := filepath.Dir(target)
	for _, name := range names {
		link := filepath.Join(dir, filepath.FromSlash(name))
		_ = os.MkdirAll(filepath.Dir(link), 0o755)
		_ = os.Remove(link)
		_ = os.Link(target, link)
	}
}
