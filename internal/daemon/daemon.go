// Package daemon implements the module-aware TCP listener for `mrsync
// daemon`: it accepts connections, resolves a module name to a filesystem
// root, and hands the connection to the sender or receiver role depending
// on which side the remote peer asked to play (spec §6 "host::path"
// daemon mode, SPEC_FULL.md §4.9 module-map addition).
package daemon

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/rs/zerolog"

	"github.com/TriForMine/mrsync/internal/config"
	"github.com/TriForMine/mrsync/internal/filelist"
	"github.com/TriForMine/mrsync/internal/protocol"
	"github.com/TriForMine/mrsync/internal/receiver"
	"github.com/TriForMine/mrsync/internal/sender"
	"github.com/TriForMine/mrsync/internal/wire"
)

// Server listens for daemon-mode connections against a fixed module map.
type Server struct {
	modules []config.Module
	log     zerolog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger overrides the server's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// NewServer builds a Server serving the given modules.
func NewServer(modules []config.Module, opts ...Option) *Server {
	s := &Server{modules: modules, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) lookup(name string) (config.Module, bool) {
	for _, m := range s.modules {
		if m.Name == name {
			return m, true
		}
	}
	return config.Module{}, false
}

// Serve accepts connections on ln until ctx is canceled (grounded on the
// teacher's rsyncd.Server.Serve accept loop).
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		nc, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		remote := nc.RemoteAddr()
		s.log.Info().Stringer("remote", remote).Msg("daemon: connection accepted")
		go func() {
			defer nc.Close()
			if err := s.handleConn(ctx, nc); err != nil {
				s.log.Error().Err(err).Stringer("remote", remote).Msg("daemon: connection handler failed")
			}
		}()
	}
}

// conn adapts a buffered-read net.Conn into a wire.Endpoint: bytes left
// over in the bufio.Reader after the text preamble must still reach
// wire.Conn, so reads go through the buffer, writes/close go straight to
// the socket.
type conn struct {
	rd *bufio.Reader
	nc net.Conn
}

func (c *conn) Read(p []byte) (int, error)  { return c.rd.Read(p) }
func (c *conn) Write(p []byte) (int, error) { return c.nc.Write(p) }
func (c *conn) Close() error                { return c.nc.Close() }

func (s *Server) handleConn(ctx context.Context, nc net.Conn) error {
	rd := bufio.NewReader(nc)

	moduleName, err := rd.ReadString('\n')
	if err != nil {
		return fmt.Errorf("daemon: reading module name: %w", err)
	}
	moduleName = strings.TrimSpace(moduleName)

	var asSender bool
	for {
		line, err := rd.ReadString('\n')
		if err != nil {
			return fmt.Errorf("daemon: reading flag line: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if line == "--sender" {
			asSender = true
		}
	}

	mod, ok := s.lookup(moduleName)
	if !ok {
		return fmt.Errorf("daemon: no such module %q", moduleName)
	}
	if mod.ReadOnly && asSender {
		// A read-only module forbids the remote from writing into it; the
		// remote playing SENDER means we (the daemon) would be the
		// RECEIVER applying their data into mod.Path, which is exactly
		// the write path a read-only module disallows.
		return fmt.Errorf("daemon: module %q is read-only", moduleName)
	}

	wc := &conn{rd: rd, nc: nc}
	wireConn := wire.NewConn(wc)

	env, err := wireConn.ReadMessage()
	if err != nil {
		return fmt.Errorf("daemon: reading SOCKET_IDENTIFICATION: %w", err)
	}
	if env.Tag != protocol.SocketIdentification {
		return fmt.Errorf("daemon: expected SOCKET_IDENTIFICATION, got %s", env.Tag)
	}

	log := s.log.With().Str("module", moduleName).Logger()

	if asSender {
		rcv := receiver.New(wireConn, mod.Path, receiver.ApplyOptions{Perms: true, Times: true},
			receiver.GeneratorOptions{Diff: filelist.DiffOptions{}}, log)
		flags := receiver.AskFileListFlags(true, false,
			protocol.AttrPermissions|protocol.AttrSize|protocol.AttrTimes|protocol.AttrChecksum)
		return rcv.Run(ctx, flags)
	}

	snd := sender.New(wireConn, sender.Roots{mod.Path + "/"}, log)
	return snd.Run(ctx)
}

var _ io.ReadWriteCloser = (*conn)(nil)
