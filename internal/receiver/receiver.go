package receiver

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/TriForMine/mrsync/internal/filelist"
	"github.com/TriForMine/mrsync/internal/protocol"
	"github.com/TriForMine/mrsync/internal/wire"
)

// Receiver drives the START -> AWAITING_LIST -> PROCESSING -> ENDING ->
// DONE state machine of spec §4.8, owning the destination tree.
type Receiver struct {
	conn     *wire.Conn
	destRoot string
	apply    ApplyOptions
	gen      GeneratorOptions
	log      zerolog.Logger
}

// New constructs a Receiver bound to conn and destRoot.
func New(conn *wire.Conn, destRoot string, apply ApplyOptions, gen GeneratorOptions, log zerolog.Logger) *Receiver {
	return &Receiver{
		conn:     conn,
		destRoot: destRoot,
		apply:    apply,
		gen:      gen,
		log:      log.With().Str("role", "receiver").Logger(),
	}
}

// AskFileListFlags builds the ASK_FILE_LIST payload from CLI-derived
// attribute requirements (spec §4.8 step 1).
func AskFileListFlags(recursive, dirsOnly bool, attrs protocol.Attr) protocol.AskFileListPayload {
	return protocol.AskFileListPayload{Attrs: attrs, Recursive: recursive, DirsOnly: dirsOnly}
}

// Run executes one full transfer: it asks for the file list, spawns the
// generator once it arrives, and applies every FILE_DATA / FILE_DATA_OFFSET
// / DELETE_FILES message until END closes the session.
func (r *Receiver) Run(ctx context.Context, flags protocol.AskFileListPayload) error {
	if err := r.conn.WriteMessage(protocol.AskFileList, flags); err != nil {
		return fmt.Errorf("receiver: sending ASK_FILE_LIST: %w", err)
	}

	env, err := r.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("receiver: awaiting FILE_LIST: %w", err)
	}
	if env.Tag != protocol.FileList {
		return fmt.Errorf("receiver: expected FILE_LIST, got %s", env.Tag)
	}
	var listPayload protocol.FileListPayload
	if err := env.Decode(&listPayload); err != nil {
		return fmt.Errorf("receiver: decoding FILE_LIST: %w", err)
	}
	remote := make(filelist.List, len(listPayload.Entries))
	for i, e := range listPayload.Entries {
		remote[i] = filelist.FromWire(e)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return RunGenerator(r.conn, r.destRoot, remote, r.gen, r.log)
	})
	g.Go(func() error {
		return r.process(gctx)
	})
	return g.Wait()
}

func (r *Receiver) process(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		env, err := r.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("receiver: reading message: %w", err)
		}

		switch env.Tag {
		case protocol.FileData:
			if err := ApplyFileData(r.destRoot, env.Header, env.Raw, r.apply); err != nil {
				r.log.Error().Err(err).Str("path", env.Header.Filename).Msg("applying FILE_DATA")
			}

		case protocol.FileDataOffset:
			var payload protocol.FileDataOffsetPayload
			if err := env.Decode(&payload); err != nil {
				return fmt.Errorf("receiver: decoding FILE_DATA_OFFSET: %w", err)
			}
			if err := ApplyOffset(r.destRoot, payload.Path, payload.Start, payload.End, payload.Offset); err != nil {
				r.log.Error().Err(err).Str("path", payload.Path).Msg("applying FILE_DATA_OFFSET")
			}

		case protocol.DeleteFiles:
			var payload protocol.DeleteFilesPayload
			if err := env.Decode(&payload); err != nil {
				return fmt.Errorf("receiver: decoding DELETE_FILES: %w", err)
			}
			if err := DeleteFiles(r.destRoot, payload.Paths, r.apply.Force); err != nil {
				r.log.Error().Err(err).Msg("applying DELETE_FILES")
			}

		case protocol.End:
			if err := r.conn.WriteMessage(protocol.ServerFinished, nil); err != nil {
				return fmt.Errorf("receiver: sending SERVER_FINISHED: %w", err)
			}
			return nil

		default:
			r.log.Warn().Stringer("tag", env.Tag).Msg("unexpected message, ignoring")
		}
	}
}
