package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/TriForMine/mrsync/internal/config"
	"github.com/TriForMine/mrsync/internal/rsyncenv"
	"github.com/rs/zerolog"
)

func TestRunLocalTransfersNewFile(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "report.txt"), []byte("quarterly numbers"), 0o644); err != nil {
		t.Fatal(err)
	}

	opts := config.Default()
	opts.Sources = []string{srcDir + "/"}
	opts.Destination = destDir
	opts.Recursive = true
	opts.Perms = true
	opts.Times = true
	if err := opts.Normalize(); err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	env := &rsyncenv.Env{Log: zerolog.Nop()}
	s := New(opts, env)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(destDir, "report.txt"))
	if err != nil {
		t.Fatalf("reading transferred file: %v", err)
	}
	if string(got) != "quarterly numbers" {
		t.Errorf("content = %q, want %q", got, "quarterly numbers")
	}
}

func TestRunRejectsBothRemote(t *testing.T) {
	opts := config.Default()
	opts.Sources = []string{"host1::mod/path"}
	opts.Destination = "host2::mod/path"

	env := &rsyncenv.Env{Log: zerolog.Nop()}
	s := New(opts, env)
	if err := s.Run(context.Background()); err == nil {
		t.Fatal("expected error when both source and destination are remote")
	}
}
