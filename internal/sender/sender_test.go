package sender

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/TriForMine/mrsync/internal/protocol"
	"github.com/TriForMine/mrsync/internal/wire"
)

func newPipePair(t *testing.T) (*wire.Conn, *wire.Conn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })
	return wire.NewConn(a), wire.NewConn(b)
}

func TestHandleAskFileListListsSourceTree(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	client, serverSide := newPipePair(t)
	s := New(serverSide, Roots{dir + "/"}, zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	if err := client.WriteMessage(protocol.AskFileList, protocol.AskFileListPayload{Recursive: true}); err != nil {
		t.Fatal(err)
	}
	env, err := client.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if env.Tag != protocol.FileList {
		t.Fatalf("got tag %s, want FILE_LIST", env.Tag)
	}
	var payload protocol.FileListPayload
	if err := env.Decode(&payload); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, e := range payload.Entries {
		if e.RelativePath == "hello.txt" {
			found = true
		}
	}
	if !found {
		t.Errorf("FILE_LIST entries = %+v, want hello.txt present", payload.Entries)
	}

	if err := client.WriteMessage(protocol.ServerFinished, nil); err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil && err != io.EOF {
		t.Fatalf("Run returned %v", err)
	}
}

func TestHandleAskFileDataWholeFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	client, serverSide := newPipePair(t)
	s := New(serverSide, Roots{dir + "/"}, zerolog.Nop())

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	req := protocol.AskFileDataPayload{Path: "hello.txt", SourceIndex: 0, TotalLength: -1}
	if err := client.WriteMessage(protocol.AskFileData, req); err != nil {
		t.Fatal(err)
	}
	env, err := client.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if env.Tag != protocol.FileData {
		t.Fatalf("got tag %s, want FILE_DATA", env.Tag)
	}
	if !env.Header.WholeFile {
		t.Errorf("WholeFile = false, want true")
	}
	if string(env.Raw) != "hello" {
		t.Errorf("payload = %q, want %q", env.Raw, "hello")
	}

	if err := client.WriteMessage(protocol.ServerFinished, nil); err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil && err != io.EOF {
		t.Fatalf("Run returned %v", err)
	}
}
