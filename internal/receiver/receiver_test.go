package receiver

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/TriForMine/mrsync/internal/filelist"
	"github.com/TriForMine/mrsync/internal/protocol"
	"github.com/TriForMine/mrsync/internal/sender"
	"github.com/TriForMine/mrsync/internal/wire"
)

func runTransfer(t *testing.T, srcDir, destDir string, gen GeneratorOptions) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })

	senderConn := wire.NewConn(a)
	receiverConn := wire.NewConn(b)

	s := sender.New(senderConn, sender.Roots{srcDir + "/"}, zerolog.Nop())
	r := New(receiverConn, destDir, ApplyOptions{Perms: true, Times: true, Force: gen.Force}, gen, zerolog.Nop())

	senderDone := make(chan error, 1)
	go func() { senderDone <- s.Run(context.Background()) }()

	flags := AskFileListFlags(true, false,
		protocol.AttrPermissions|protocol.AttrSize|protocol.AttrTimes|protocol.AttrChecksum)
	if err := r.Run(context.Background(), flags); err != nil {
		t.Fatalf("receiver.Run: %v", err)
	}
	if err := <-senderDone; err != nil {
		t.Fatalf("sender.Run: %v", err)
	}
}

func TestNewFileCreation(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "hello.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	runTransfer(t, srcDir, destDir, GeneratorOptions{Diff: filelist.DiffOptions{}})

	got, err := os.ReadFile(filepath.Join(destDir, "hello.txt"))
	if err != nil {
		t.Fatalf("reading destination file: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("destination content = %q, want %q", got, "hello")
	}
}

func TestDeleteExtra(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(destDir, "a.txt"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(destDir, "b.txt"), []byte("b"), 0o644); err != nil {
		t.Fatal(err)
	}

	runTransfer(t, srcDir, destDir, GeneratorOptions{Diff: filelist.DiffOptions{}, Delete: true})

	if _, err := os.Stat(filepath.Join(destDir, "b.txt")); !os.IsNotExist(err) {
		t.Errorf("b.txt still exists after --delete transfer, err=%v", err)
	}
	if _, err := os.Stat(filepath.Join(destDir, "a.txt")); err != nil {
		t.Errorf("a.txt should still exist: %v", err)
	}
}

func TestTailExtensionOverWire(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "f.txt"), []byte("abcdef"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(destDir, "f.txt"), []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}

	runTransfer(t, srcDir, destDir, GeneratorOptions{Diff: filelist.DiffOptions{}})

	got, err := os.ReadFile(filepath.Join(destDir, "f.txt"))
	if err != nil {
		t.Fatalf("reading destination file: %v", err)
	}
	if string(got) != "abcdef" {
		t.Errorf("destination content = %q, want %q", got, "abcdef")
	}
}
