package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/TriForMine/mrsync/internal/rsyncenv"
)

func testEnv() (*rsyncenv.Env, *bytes.Buffer) {
	var stderr bytes.Buffer
	return &rsyncenv.Env{
		Stdin:  strings.NewReader(""),
		Stdout: &bytes.Buffer{},
		Stderr: &stderr,
		Log:    zerolog.Nop(),
	}, &stderr
}

func TestRunLocalTransfer(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	env, _ := testEnv()
	code := run([]string{"--archive", "--no-sandbox", srcDir + "/", destDir}, env)
	if code != 0 {
		t.Fatalf("run() exit code = %d, want 0", code)
	}

	got, err := os.ReadFile(filepath.Join(destDir, "a.txt"))
	if err != nil {
		t.Fatalf("reading transferred file: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("content = %q, want %q", got, "hello")
	}
}

func TestRunRejectsMissingDestination(t *testing.T) {
	srcDir := t.TempDir()
	env, _ := testEnv()
	code := run([]string{srcDir}, env)
	if code != 3 {
		t.Fatalf("run() exit code = %d, want 3 (ExitBadSource)", code)
	}
}

func TestRunRejectsSameSourceAndDestination(t *testing.T) {
	dir := t.TempDir()
	env, _ := testEnv()
	code := run([]string{dir, dir}, env)
	if code != 3 {
		t.Fatalf("run() exit code = %d, want 3 (ExitBadSource)", code)
	}
}

func TestRunDaemonRequiresConfig(t *testing.T) {
	env, _ := testEnv()
	code := run([]string{"daemon"}, env)
	if code != 1 {
		t.Fatalf("run() exit code = %d, want 1 (ExitUsage)", code)
	}
}
