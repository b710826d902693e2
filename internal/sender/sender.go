// Package sender implements the sender state machine (spec §4.7): it owns
// the source roots, replies to file-list and file-data requests, and runs
// the delta scan against digests supplied by the remote generator.
package sender

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/TriForMine/mrsync/internal/checksum"
	"github.com/TriForMine/mrsync/internal/delta"
	"github.com/TriForMine/mrsync/internal/filelist"
	"github.com/TriForMine/mrsync/internal/pathresolve"
	"github.com/TriForMine/mrsync/internal/protocol"
	"github.com/TriForMine/mrsync/internal/wire"
)

// Roots describes the configured source arguments (spec §4.9: sources[]).
type Roots []string

// Sender serves one transfer session from the source side.
type Sender struct {
	conn  *wire.Conn
	roots Roots
	log   zerolog.Logger
}

// New constructs a Sender bound to conn and the configured source roots.
func New(conn *wire.Conn, roots Roots, log zerolog.Logger) *Sender {
	return &Sender{conn: conn, roots: roots, log: log.With().Str("role", "sender").Logger()}
}

// Run drives the IDLE -> AWAITING_ASK -> SERVING -> CLOSING -> CLOSED state
// machine until END/SERVER_FINISHED closes the session or ctx is canceled.
func (s *Sender) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		env, err := s.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("sender: reading message: %w", err)
		}

		switch env.Tag {
		case protocol.AskFileList:
			var req protocol.AskFileListPayload
			if err := env.Decode(&req); err != nil {
				return fmt.Errorf("sender: decoding ASK_FILE_LIST: %w", err)
			}
			if err := s.handleAskFileList(req); err != nil {
				return err
			}

		case protocol.Ping:
			if err := s.conn.WriteMessage(protocol.Pong, nil); err != nil {
				return fmt.Errorf("sender: replying PONG: %w", err)
			}

		case protocol.AskFileData:
			var req protocol.AskFileDataPayload
			if err := env.Decode(&req); err != nil {
				return fmt.Errorf("sender: decoding ASK_FILE_DATA: %w", err)
			}
			if err := s.handleAskFileData(req); err != nil {
				return err
			}

		case protocol.DeleteFiles:
			// Pass-through; deletion is applied by the receiver only.

		case protocol.GeneratorFinished:
			if err := s.conn.WriteMessage(protocol.End, nil); err != nil {
				return fmt.Errorf("sender: replying END: %w", err)
			}

		case protocol.ServerFinished:
			return nil

		case protocol.End:
			// EOF on read, surfaced by wire.Conn as a synthetic End.
			return nil

		default:
			s.log.Warn().Stringer("tag", env.Tag).Msg("unexpected message, ignoring")
		}
	}
}

func (s *Sender) handleAskFileList(req protocol.AskFileListPayload) error {
	var all filelist.List
	for i, root := range s.roots {
		entries, err := filelist.Build(root, i, filelist.WalkOptions{
			Recursive: req.Recursive,
			DirsOnly:  req.DirsOnly,
			Attrs:     req.Attrs,
		})
		if err != nil {
			return fmt.Errorf("sender: building file list for %s: %w", root, err)
		}
		all = append(all, entries...)
	}

	wireEntries := make([]protocol.FileListEntry, len(all))
	for i, e := range all {
		wireEntries[i] = e.ToWire()
	}
	payload := protocol.FileListPayload{Entries: wireEntries}
	if err := s.conn.WriteMessage(protocol.FileList, payload); err != nil {
		return fmt.Errorf("sender: sending FILE_LIST: %w", err)
	}
	return nil
}

func (s *Sender) handleAskFileData(req protocol.AskFileDataPayload) error {
	if req.SourceIndex < 0 || req.SourceIndex >= len(s.roots) {
		return fmt.Errorf("sender: ASK_FILE_DATA source_index %d out of range", req.SourceIndex)
	}
	root := s.roots[req.SourceIndex]
	base := root
	if !strings.HasSuffix(root, "/") {
		base = filepath.Dir(root)
	}
	fullPath := filepath.Clean(pathresolve.Resolve(base, root, req.Path))

	info, err := os.Stat(fullPath)
	if err != nil {
		return fmt.Errorf("sender: stat %s: %w", fullPath, err)
	}
	if info.IsDir() {
		return s.conn.WriteFileData(protocol.FileDataHeader{
			Filename: strings.TrimSuffix(req.Path, "/") + "/",
		}, nil)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return fmt.Errorf("sender: reading %s: %w", fullPath, err)
	}
	meta := fileInfo(info, data)

	if req.Digests == nil || len(req.Digests.Blocks) == 0 || req.TotalLength < 0 {
		return s.conn.WriteFileData(protocol.FileDataHeader{
			Filename:  req.Path,
			Info:      &meta,
			Start:     0,
			End:       uint32(len(data)),
			WholeFile: true,
		}, data)
	}

	instrs := delta.Scan(data, *req.Digests)
	for _, in := range instrs {
		switch in.Op {
		case delta.Move:
			// shift==0 never reaches here: Scan only emits Move when the
			// block actually needs to shift (spec §4.4 edge case, §4.7:
			// "if offset > 0, emit FILE_DATA_OFFSET"). The guard stays as
			// a defensive check against a future Scan regression.
			if in.Offset == 0 {
				continue
			}
			payload := protocol.FileDataOffsetPayload{
				Path:   req.Path,
				Start:  uint32(in.Start),
				End:    uint32(in.End),
				Offset: int32(in.Offset),
			}
			if err := s.conn.WriteMessage(protocol.FileDataOffset, payload); err != nil {
				return fmt.Errorf("sender: sending FILE_DATA_OFFSET: %w", err)
			}
		case delta.Literal:
			if len(in.Data) == 0 && in.End == in.Start {
				// A no-diff region: send a TOUCH so the receiver still
				// refreshes metadata (spec §4.7/§7 ALREADY-UP-TO-DATE).
				if err := s.conn.WriteFileData(protocol.FileDataHeader{
					Filename:  req.Path,
					Info:      &meta,
					WholeFile: false,
				}, nil); err != nil {
					return fmt.Errorf("sender: sending TOUCH: %w", err)
				}
				continue
			}
			if err := s.conn.WriteFileData(protocol.FileDataHeader{
				Filename: req.Path,
				Info:     &meta,
				Start:    uint32(in.Start),
				End:      uint32(in.End),
			}, in.Data); err != nil {
				return fmt.Errorf("sender: sending FILE_DATA: %w", err)
			}
		}
	}
	if len(instrs) == 0 {
		// Whole-file equality: only a metadata refresh is needed.
		if err := s.conn.WriteFileData(protocol.FileDataHeader{
			Filename:  req.Path,
			Info:      &meta,
			WholeFile: false,
		}, nil); err != nil {
			return fmt.Errorf("sender: sending TOUCH: %w", err)
		}
	}
	return nil
}

func fileInfo(fi os.FileInfo, data []byte) protocol.FileInfo {
	info := protocol.FileInfo{}
	info.WithMode(uint32(fi.Mode().Perm()))
	info.WithSize(fi.Size())
	mt := fi.ModTime().Unix()
	info.WithTimes(mt, mt, mt)
	info.WithChecksum(checksum.Compute(data).Sum())
	return info
}
