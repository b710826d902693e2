package receiver

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/TriForMine/mrsync/internal/checksum"
	"github.com/TriForMine/mrsync/internal/filelist"
	"github.com/TriForMine/mrsync/internal/protocol"
	"github.com/TriForMine/mrsync/internal/wire"
)

func readDestFile(destRoot, relPath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(destRoot, filepath.FromSlash(relPath)))
}

// GeneratorOptions mirrors the CLI flags that shape what the generator
// asks for (spec §4.6).
type GeneratorOptions struct {
	Diff   filelist.DiffOptions
	Delete bool
	Force  bool
}

// RunGenerator diffs the remote (source) file list against a freshly-built
// local (destination) inventory and drives ASK_FILE_DATA / DELETE_FILES
// requests over conn, finishing with GENERATOR_FINISHED (spec §4.6). It
// shares conn with the receiver's own reads; wire.Conn serialises writes
// so the two goroutines never interleave frames (spec §5).
func RunGenerator(conn *wire.Conn, destRoot string, remote filelist.List, opts GeneratorOptions, log zerolog.Logger) error {
	local, err := filelist.Build(destRoot+"/", 0, filelist.WalkOptions{
		Recursive: true,
		Attrs:     protocol.AttrPermissions | protocol.AttrSize | protocol.AttrTimes | protocol.AttrChecksum,
	})
	if err != nil {
		return fmt.Errorf("generator: building destination inventory: %w", err)
	}

	diffs, extra := filelist.Compare(remote, local, opts.Diff)

	for _, d := range diffs {
		if d.Status == filelist.Unchanged {
			continue
		}
		if d.Entry.Kind == protocol.KindDirectory {
			// Directories carry no content; a bare ASK_FILE_DATA still
			// lets the sender reply with a directory marker so the
			// receiver can mkdir it (no attributes are applied to it).
			if err := askFileData(conn, d.Entry, nil); err != nil {
				return err
			}
			continue
		}

		switch d.Status {
		case filelist.Missing:
			if err := askFileData(conn, d.Entry, nil); err != nil {
				return err
			}
		case filelist.Modified:
			digest := checksum.Digest(nil, false)
			if d.Destination != nil {
				digest = localDigest(destRoot, *d.Destination)
			}
			if err := askFileData(conn, d.Entry, &digest); err != nil {
				return err
			}
		}
	}

	if opts.Delete && len(extra) > 0 {
		paths := make([]string, len(extra))
		for i, e := range extra {
			paths[i] = e.RelativePath
		}
		if err := conn.WriteMessage(protocol.DeleteFiles, protocol.DeleteFilesPayload{Paths: paths}); err != nil {
			return fmt.Errorf("generator: sending DELETE_FILES: %w", err)
		}
		if err := DeleteFiles(destRoot, paths, opts.Force); err != nil {
			log.Warn().Err(err).Msg("deleting extra destination entries")
		}
	}

	if err := conn.WriteMessage(protocol.GeneratorFinished, nil); err != nil {
		return fmt.Errorf("generator: sending GENERATOR_FINISHED: %w", err)
	}
	return nil
}

func askFileData(conn *wire.Conn, entry filelist.Entry, digest *protocol.BlockDigestSet) error {
	payload := protocol.AskFileDataPayload{
		Path:        entry.RelativePath,
		SourceIndex: entry.SourceIndex,
		TotalLength: -1,
	}
	if digest != nil {
		payload.Digests = digest
		payload.TotalLength = digest.TotalLength
	}
	if err := conn.WriteMessage(protocol.AskFileData, payload); err != nil {
		return fmt.Errorf("generator: sending ASK_FILE_DATA for %s: %w", entry.RelativePath, err)
	}
	return nil
}

func localDigest(destRoot string, dest filelist.Entry) protocol.BlockDigestSet {
	data, err := readDestFile(destRoot, dest.RelativePath)
	if err != nil {
		return checksum.Digest(nil, false)
	}
	return checksum.Digest(data, false)
}
