// Command mrsync is the CLI binding for the transfer engine in
// internal/session: it populates a config.Options record from flags,
// validates it, and either runs a client-side transfer, serves the
// --server role over stdio (the remote end of a spawned shell/ssh
// connection), or runs the TCP module daemon.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TriForMine/mrsync/internal/config"
	"github.com/TriForMine/mrsync/internal/daemon"
	"github.com/TriForMine/mrsync/internal/protocol"
	"github.com/TriForMine/mrsync/internal/receiver"
	"github.com/TriForMine/mrsync/internal/rsyncenv"
	"github.com/TriForMine/mrsync/internal/sandbox"
	"github.com/TriForMine/mrsync/internal/sender"
	"github.com/TriForMine/mrsync/internal/session"
	"github.com/TriForMine/mrsync/internal/wire"
)

func main() {
	os.Exit(run(os.Args[1:], rsyncenv.System()))
}

// run is main's testable core: it never calls os.Exit itself, returning
// the process exit code instead (spec §7's exit-code table, surfaced here
// and nowhere else in the module).
func run(args []string, env *rsyncenv.Env) int {
	root := newRootCommand(env)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		return exitCodeFor(err)
	}
	return config.ExitSuccess
}

func exitCodeFor(err error) int {
	var exitErr *config.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return config.ExitUsage
}

// newRootCommand builds the cobra.Command tree. Flag parsing is a thin
// adapter over config.Options; nothing downstream of Options imports
// cobra (mutagen-io/mutagen and Nithron-NithronOS wire their CLIs the
// same way: one flags struct, bound once, read everywhere else).
func newRootCommand(env *rsyncenv.Env) *cobra.Command {
	opts := config.Default()
	var noRestrict bool

	root := &cobra.Command{
		Use:   "mrsync [flags] SRC... DST",
		Short: "mrsync synchronises file trees using rolling-checksum delta transfer",
		Args:  cobra.MinimumNArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case opts.Server && opts.ServerSends:
				opts.Sources = args
			case opts.Server:
				if len(args) > 0 {
					opts.Destination = args[len(args)-1]
				}
			case opts.ListOnly && len(args) > 0:
				opts.Sources = args
			case len(args) > 0:
				opts.Sources = args[:len(args)-1]
				opts.Destination = args[len(args)-1]
			}
			return runTransfer(cmd.Context(), opts, env, noRestrict)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.Flags()
	flags.BoolVarP(&opts.Recursive, "recursive", "r", false, "recurse into directories")
	flags.BoolVarP(&opts.Dirs, "dirs", "d", false, "transfer directories without recursing")
	flags.BoolVarP(&opts.Archive, "archive", "a", false, "archive mode (-r implied, preserve perms and times)")
	flags.BoolVarP(&opts.Perms, "perms", "p", false, "preserve permissions")
	flags.BoolVarP(&opts.Times, "times", "t", false, "preserve modification times")
	flags.BoolVarP(&opts.HardLinks, "hard-links", "H", false, "send hard-link counts in the file list (additional link names are not recreated)")
	flags.BoolVarP(&opts.Compress, "compress", "z", false, "compress file data during the transfer")
	flags.IntVar(&opts.CompressLevel, "compress-level", opts.CompressLevel, "deflate compression level (1-9)")
	flags.BoolVarP(&opts.Checksum, "checksum", "c", false, "skip based on checksum, not mod-time and size")
	flags.BoolVar(&opts.IgnoreTimes, "ignore-times", false, "compare files by size only, ignoring mod-time")
	flags.BoolVar(&opts.SizeOnly, "size-only", false, "skip files that match in size only")
	flags.BoolVarP(&opts.Update, "update", "u", false, "accepted but has no effect: no file is skipped because it is newer on the receiver")
	flags.BoolVar(&opts.IgnoreExisting, "ignore-existing", false, "skip files that already exist on the receiver")
	flags.BoolVar(&opts.Existing, "existing", false, "skip files that don't already exist on the receiver")
	flags.BoolVar(&opts.Delete, "delete", false, "delete extraneous files from the receiving side")
	flags.BoolVar(&opts.Force, "force", false, "force deletion of directories even when non-empty")
	flags.BoolVarP(&opts.WholeFile, "whole-file", "W", false, "accepted but has no effect on transfers: modified files always go through the block delta")
	flags.IntVar(&opts.Timeout, "timeout", 0, "I/O timeout in seconds (0 disables it)")
	flags.IntVar(&opts.Port, "port", opts.Port, "daemon TCP port")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "increase verbosity")
	flags.BoolVarP(&opts.Quiet, "quiet", "q", false, "suppress non-error output")
	flags.BoolVar(&opts.ListOnly, "list-only", false, "list the source file tree instead of transferring it")
	flags.BoolVar(&opts.Server, "server", false, "run as the remote end of a spawned connection (internal)")
	flags.BoolVar(&opts.ServerSends, "sender", false, "with --server, play the sender role (internal)")
	flags.BoolVar(&noRestrict, "no-sandbox", false, "disable the Landlock file system sandbox")
	flags.MarkHidden("server")
	flags.MarkHidden("sender")

	root.AddCommand(newDaemonCommand(env))
	return root
}

// runTransfer handles every non-daemon invocation: a normal client-side
// transfer, or (when --server was passed by a spawning shell/ssh command)
// serving the sender/receiver role directly over this process's stdio.
func runTransfer(ctx context.Context, opts config.Options, env *rsyncenv.Env, noRestrict bool) error {
	if err := opts.Normalize(); err != nil {
		return err
	}
	env = env.WithVerbosity(opts.Verbose, opts.Quiet)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if opts.Server {
		return runServerRole(ctx, opts, env, noRestrict)
	}

	if !noRestrict {
		if err := restrictForTransfer(opts); err != nil {
			env.Log.Warn().Err(err).Msg("sandbox: continuing without file system restriction")
		}
	}

	sess := session.New(opts, env)
	if err := sess.Run(ctx); err != nil {
		return config.NewExitError(exitCodeForTransferErr(err), err)
	}
	return nil
}

// runServerRole plays the Sender or Receiver role directly against this
// process's stdin/stdout: the path a spawning ssh/shell command takes
// when it runs "mrsync --server [--sender] SRC... DST" on the far end
// (spec §6, grounded on the teacher's maincmd.Main "start_server" branch).
func runServerRole(ctx context.Context, opts config.Options, env *rsyncenv.Env, noRestrict bool) error {
	if len(opts.Sources) == 0 && opts.Destination == "" {
		return config.NewExitError(config.ExitBadSource, fmt.Errorf("mrsync: --server requires at least one path argument"))
	}

	var roDirs, rwDirs []string
	if opts.ServerSends {
		roDirs = opts.Sources
	} else {
		if err := os.MkdirAll(opts.Destination, 0o755); err != nil {
			return config.NewExitError(config.ExitBadSource, err)
		}
		rwDirs = []string{opts.Destination}
	}
	if !noRestrict {
		if err := sandbox.Restrict(roDirs, rwDirs); err != nil {
			env.Log.Warn().Err(err).Msg("sandbox: continuing without file system restriction")
		}
	}

	conn := wire.NewConn(&stdioEndpoint{in: env.Stdin, out: env.Stdout})

	if opts.ServerSends {
		snd := sender.New(conn, sender.Roots(opts.Sources), env.Log)
		if err := snd.Run(ctx); err != nil {
			return config.NewExitError(exitCodeForTransferErr(err), err)
		}
		return nil
	}

	rcv := receiver.New(conn, opts.Destination, receiver.ApplyOptions{
		Perms: opts.Perms, Times: opts.Times, HardLinks: opts.HardLinks, Force: opts.Force,
	}, receiver.GeneratorOptions{Delete: opts.Delete, Force: opts.Force}, env.Log)
	flags := receiver.AskFileListFlags(opts.Recursive, opts.Dirs, attrsForServerRole(opts))
	if err := rcv.Run(ctx, flags); err != nil {
		return config.NewExitError(exitCodeForTransferErr(err), err)
	}
	return nil
}

// attrsForServerRole mirrors internal/session's attribute mapping; kept
// here rather than exported from session since --server is the one place
// outside that package that needs to build an AskFileListPayload by hand.
func attrsForServerRole(o config.Options) protocol.Attr {
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

func restrictForTransfer(opts config.Options) error {
	if len(opts.Sources) == 0 {
		return nil
	}
	return sandbox.Restrict(opts.Sources, []string{opts.Destination})
}

// exitCodeForTransferErr maps a transfer failure to spec §7's exit codes.
// An I/O timeout maps to ExitTimeout; every other transfer failure,
// short-read data loss and generic transport/file-apply errors alike,
// maps to ExitPartialData.
func exitCodeForTransferErr(err error) int {
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded):
		return config.ExitTimeout
	default:
		return config.ExitPartialData
	}
}

// stdioEndpoint adapts a pair of io.Reader/io.Writer (a process's stdio,
// or the stdio of a spawned child) into a wire.Endpoint.
type stdioEndpoint struct {
	in  interface {
		Read([]byte) (int, error)
	}
	out interface {
		Write([]byte) (int, error)
	}
}

func (s *stdioEndpoint) Read(p []byte) (int, error)  { return s.in.Read(p) }
func (s *stdioEndpoint) Write(p []byte) (int, error) { return s.out.Write(p) }
func (s *stdioEndpoint) Close() error                { return nil }

func newDaemonCommand(env *rsyncenv.Env) *cobra.Command {
	var configPath string
	var addr string
	var port int
	var verbose bool

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "serve configured modules over TCP (host::module syntax)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return config.NewExitError(config.ExitUsage, fmt.Errorf("mrsync daemon: --config is required"))
			}
			cfg, err := config.LoadDaemonConfig(configPath)
			if err != nil {
				return config.NewExitError(config.ExitBadSource, err)
			}
			if addr != "" {
				cfg.Address = addr
			}
			if port != 0 {
				cfg.Port = port
			}
			env = env.WithVerbosity(verbose, false)

			if err := daemon.DropPrivileges(env.Log); err != nil {
				env.Log.Warn().Err(err).Msg("daemon: continuing as the invoking user")
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runDaemon(ctx, cfg, env)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "", "path to the daemon's TOML module map")
	flags.StringVar(&addr, "address", "", "override the listen address from the config file")
	flags.IntVar(&port, "port", 0, "override the listen port from the config file")
	flags.BoolVarP(&verbose, "verbose", "v", false, "increase verbosity")
	return cmd
}

func runDaemon(ctx context.Context, cfg *config.DaemonConfig, env *rsyncenv.Env) error {
	listenAddr := fmt.Sprintf("%s:%d", cfg.Address, cfg.Port)
	ln, err := newTCPListener(listenAddr)
	if err != nil {
		return config.NewExitError(config.ExitBadSource, err)
	}

	if err := daemon.DropPrivileges(env.Log); err != nil {
		env.Log.Warn().Err(err).Msg("daemon: continuing as the invoking user")
	}

	srv := daemon.NewServer(cfg.Modules, daemon.WithLogger(env.Log))
	env.Log.Info().Str("address", listenAddr).Int("modules", len(cfg.Modules)).Msg("daemon: listening")
	if err := srv.Serve(ctx, ln); err != nil {
		return config.NewExitError(config.ExitPartialData, err)
	}
	return nil
}

func newTCPListener(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}
