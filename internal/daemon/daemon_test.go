package daemon

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/TriForMine/mrsync/internal/config"
	"github.com/TriForMine/mrsync/internal/protocol"
	"github.com/TriForMine/mrsync/internal/receiver"
	"github.com/TriForMine/mrsync/internal/wire"
)

func TestDaemonServesModuleToReceiver(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "notes.txt"), []byte("daemon transfer"), 0o644); err != nil {
		t.Fatal(err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	srv := NewServer([]config.Module{{Name: "pub", Path: srcDir}}, WithLogger(zerolog.Nop()))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx, ln)

	nc, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer nc.Close()

	if _, err := nc.Write([]byte("pub\n\n")); err != nil {
		t.Fatal(err)
	}
	conn := wire.NewConn(nc)
	if err := conn.WriteSocketIdentity(protocol.IdentityClient); err != nil {
		t.Fatal(err)
	}

	rcv := receiver.New(conn, destDir, receiver.ApplyOptions{Perms: true, Times: true},
		receiver.GeneratorOptions{}, zerolog.Nop())
	flags := receiver.AskFileListFlags(true, false,
		protocol.AttrPermissions|protocol.AttrSize|protocol.AttrTimes|protocol.AttrChecksum)
	if err := rcv.Run(ctx, flags); err != nil {
		t.Fatalf("receiver.Run against daemon: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(destDir, "notes.txt"))
	if err != nil {
		t.Fatalf("reading transferred file: %v", err)
	}
	if string(got) != "daemon transfer" {
		t.Errorf("content = %q, want %q", got, "daemon transfer")
	}
}

func TestDaemonRejectsUnknownModule(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := NewServer(nil, WithLogger(zerolog.Nop()))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx, ln)

	nc, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer nc.Close()
	if _, err := nc.Write([]byte("missing\n\n")); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 1)
	if _, err := nc.Read(buf); err == nil {
		t.Fatal("expected the daemon to close the connection for an unknown module")
	}
}
