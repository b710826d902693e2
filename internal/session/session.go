// Package session wires the sender, receiver and generator roles together
// over whichever transport an invocation resolves to: an in-process pipe
// for local transfers, a spawned subprocess's stdio for remote-shell mode,
// or a dialed TCP connection for daemon mode (spec §6 path schemes, §9
// concurrency model).
package session

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/TriForMine/mrsync/internal/config"
	"github.com/TriForMine/mrsync/internal/filelist"
	"github.com/TriForMine/mrsync/internal/protocol"
	"github.com/TriForMine/mrsync/internal/receiver"
	"github.com/TriForMine/mrsync/internal/rsyncenv"
	"github.com/TriForMine/mrsync/internal/sender"
	"github.com/TriForMine/mrsync/internal/wire"
)

// Session orchestrates one transfer invocation end to end.
type Session struct {
	Opts config.Options
	Env  *rsyncenv.Env
	ID   uuid.UUID
}

// New constructs a Session with a fresh transfer ID, attached to every log
// line the session emits (spec §9 "session identity" addition).
func New(opts config.Options, env *rsyncenv.Env) *Session {
	id := uuid.New()
	env.Log = env.Log.With().Str("session", id.String()).Logger()
	return &Session{Opts: opts, Env: env, ID: id}
}

func attrsFromOptions(o config.Options) protocol.Attr {
	var a protocol.Attr
	if o.Perms {
		a |= protocol.AttrPermissions
	}
	if o.Times {
		a |= protocol.AttrTimes
	}
	if o.HardLinks {
		a |= protocol.AttrHardLinks
	}
	a |= protocol.AttrSize
	if o.Checksum || !o.WholeFile {
		a |= protocol.AttrChecksum
	}
	return a
}

func (s *Session) diffOptions() filelist.DiffOptions {
	return filelist.DiffOptions{
		Checksum:     s.Opts.Checksum,
		IgnoreTimes:  s.Opts.IgnoreTimes,
		SizeOnly:     s.Opts.SizeOnly,
		ExistingOnly: s.Opts.Existing,
		IgnoreExist:  s.Opts.IgnoreExisting,
	}
}

func (s *Session) applyOptions() receiver.ApplyOptions {
	return receiver.ApplyOptions{
		Perms:     s.Opts.Perms,
		Times:     s.Opts.Times,
		HardLinks: s.Opts.HardLinks,
		Force:     s.Opts.Force,
	}
}

func (s *Session) generatorOptions() receiver.GeneratorOptions {
	return receiver.GeneratorOptions{
		Diff:   s.diffOptions(),
		Delete: s.Opts.Delete,
		Force:  s.Opts.Force,
	}
}

// Run dispatches the configured transfer to the right transport based on
// the source/destination path schemes (spec §6).
func (s *Session) Run(ctx context.Context) error {
	dst := ParseEndpoint(s.Opts.Destination)

	var remoteSrc *Endpoint
	for _, raw := range s.Opts.Sources {
		ep := ParseEndpoint(raw)
		if ep.IsRemote() {
			if dst.IsRemote() {
				return fmt.Errorf("session: source and destination cannot both be remote")
			}
			if remoteSrc != nil {
				return fmt.Errorf("session: at most one remote source is supported per transfer")
			}
			e := ep
			remoteSrc = &e
		}
	}

	switch {
	case dst.IsRemote():
		return s.runAsSender(ctx, dst)
	case remoteSrc != nil:
		return s.runAsReceiver(ctx, *remoteSrc)
	default:
		return s.runLocal(ctx)
	}
}

// runLocal wires a Sender and Receiver together over an in-process pipe
// (spec §9's thread-per-role model, both roles in one OS process since no
// network hop is involved).
func (s *Session) runLocal(ctx context.Context) error {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	senderConn := wire.NewConn(a, s.connOptions()...)
	receiverConn := wire.NewConn(b, s.connOptions()...)

	snd := sender.New(senderConn, sender.Roots(s.Opts.Sources), s.Env.Log)
	rcv := receiver.New(receiverConn, s.Opts.Destination, s.applyOptions(), s.generatorOptions(), s.Env.Log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return snd.Run(gctx) })
	g.Go(func() error {
		return rcv.Run(gctx, receiver.AskFileListFlags(s.Opts.Recursive, s.Opts.Dirs, attrsFromOptions(s.Opts)))
	})
	return g.Wait()
}

// runAsSender dials/spawns a connection to remote (the destination) and
// serves the Sender role against it, blocking until the transfer closes.
func (s *Session) runAsSender(ctx context.Context, remote Endpoint) error {
	conn, cleanup, err := s.dial(ctx, remote, true)
	if err != nil {
		return err
	}
	defer cleanup()

	snd := sender.New(conn, sender.Roots(s.Opts.Sources), s.Env.Log)
	return snd.Run(ctx)
}

// runAsReceiver dials/spawns a connection to remote (the source) and
// serves the Receiver role against it.
func (s *Session) runAsReceiver(ctx context.Context, remote Endpoint) error {
	conn, cleanup, err := s.dial(ctx, remote, false)
	if err != nil {
		return err
	}
	defer cleanup()

	rcv := receiver.New(conn, s.Opts.Destination, s.applyOptions(), s.generatorOptions(), s.Env.Log)
	return rcv.Run(ctx, receiver.AskFileListFlags(s.Opts.Recursive, s.Opts.Dirs, attrsFromOptions(s.Opts)))
}

// dial establishes the transport to remote and returns a ready-to-use
// wire.Conn plus a cleanup func. weAreSender tells a spawned/daemon peer
// which role it must play (the opposite of ours).
func (s *Session) dial(ctx context.Context, remote Endpoint, weAreSender bool) (*wire.Conn, func(), error) {
	switch remote.Scheme {
	case SchemeDaemon:
		return s.dialDaemon(ctx, remote, weAreSender)
	case SchemeRemoteShell:
		return s.spawnRemoteShell(ctx, remote, weAreSender)
	default:
		return nil, nil, fmt.Errorf("session: endpoint %q is not remote", remote.Path)
	}
}

// dialDaemon connects to host:port and performs the text preamble the
// daemon package expects before switching to the framed wire protocol: the
// module name, an optional "--sender" flag line (announcing which role we
// want to play), and a blank line terminating the flag list — the same
// shape as the teacher's HandleDaemonConn flag-line loop, simplified to
// carry only the one flag this module needs.
func (s *Session) dialDaemon(ctx context.Context, remote Endpoint, weAreSender bool) (*wire.Conn, func(), error) {
	addr := remote.Host
	if !strings.Contains(addr, ":") {
		port := s.Opts.Port
		if port == 0 {
			port = 10873
		}
		addr = fmt.Sprintf("%s:%d", addr, port)
	}

	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("session: dialing daemon %s: %w", addr, err)
	}

	preamble := remote.Module + "\n"
	if weAreSender {
		preamble += "--sender\n"
	}
	preamble += "\n"
	if _, err := nc.Write([]byte(preamble)); err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("session: sending daemon preamble: %w", err)
	}

	conn := wire.NewConn(nc, s.connOptions()...)
	if err := conn.WriteSocketIdentity(protocol.IdentityClient); err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("session: sending SOCKET_IDENTIFICATION: %w", err)
	}

	return conn, func() { nc.Close() }, nil
}

// spawnRemoteShell runs the module binary over ssh (or locally, when Host
// is empty, for testing) with --server (plus --sender when the peer is to
// play the Sender role, i.e. when we receive) and the remote-side path as
// its one positional argument, wiring its stdio as the transport (spec §6
// "[user@]host:path" scheme).
func (s *Session) spawnRemoteShell(ctx context.Context, remote Endpoint, weAreSender bool) (*wire.Conn, func(), error) {
	args := []string{"--server"}
	if !weAreSender {
		args = append(args, "--sender")
	}
	args = append(args, remote.Path)

	var cmd *exec.Cmd
	if remote.Host == "" {
		cmd = exec.CommandContext(ctx, "mrsync", args...)
	} else {
		target := remote.Host
		if remote.User != "" {
			target = remote.User + "@" + remote.Host
		}
		sshArgs := append([]string{target, "mrsync"}, args...)
		cmd = exec.CommandContext(ctx, "ssh", sshArgs...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("session: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("session: stdout pipe: %w", err)
	}
	cmd.Stderr = s.Env.Stderr

	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("session: starting %s: %w", cmd.Path, err)
	}

	rw := &pipeEndpoint{r: stdout, w: stdin}
	conn := wire.NewConn(rw, s.connOptions()...)
	cleanup := func() {
		stdin.Close()
		_ = cmd.Wait()
	}
	return conn, cleanup, nil
}

type pipeEndpoint struct {
	r interface {
		Read([]byte) (int, error)
	}
	w interface {
		Write([]byte) (int, error)
	}
}

func (p *pipeEndpoint) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *pipeEndpoint) Write(b []byte) (int, error) { return p.w.Write(b) }
func (p *pipeEndpoint) Close() error                { return nil }

// connOptions builds the wire.Conn options shared by every transport this
// session dials (spec §6: timeout=0 means blocking I/O, compress+level
// gate deflate on FILE_DATA payloads).
func (s *Session) connOptions() []wire.Option {
	var opts []wire.Option
	if s.Opts.Timeout > 0 {
		opts = append(opts, wire.WithTimeout(time.Duration(s.Opts.Timeout)*time.Second))
	}
	if s.Opts.Compress {
		opts = append(opts, wire.WithCompression(s.Opts.CompressLevel))
	}
	return opts
}
