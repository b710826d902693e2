package config

import (
	"errors"
	"testing"
)

func TestNormalizeArchiveImplies(t *testing.T) {
	o := Default()
	o.Sources = []string{"/tmp/src"}
	o.Destination = "/tmp/dst"
	o.Archive = true
	if err := o.Normalize(); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !o.Recursive || !o.Perms || !o.Times {
		t.Errorf("Archive did not imply recursive+perms+times: %+v", o)
	}
}

func TestNormalizeRejectsSameSourceDestination(t *testing.T) {
	o := Default()
	o.Sources = []string{"/tmp/a"}
	o.Destination = "/tmp/a"

	err := o.Normalize()
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected *ExitError, got %v", err)
	}
	if exitErr.Code != ExitBadSource {
		t.Errorf("exit code = %d, want %d", exitErr.Code, ExitBadSource)
	}
}

func TestNormalizeRequiresDestinationUnlessListOnly(t *testing.T) {
	o := Default()
	o.Sources = []string{"/tmp/a"}
	o.ListOnly = true
	if err := o.Normalize(); err != nil {
		t.Fatalf("list-only without destination should be valid: %v", err)
	}

	o2 := Default()
	o2.Sources = []string{"/tmp/a"}
	if err := o2.Normalize(); err == nil {
		t.Fatal("expected error for missing destination")
	}
}

func TestNormalizeClampsCompressLevel(t *testing.T) {
	o := Default()
	o.Sources = []string{"/tmp/a"}
	o.Destination = "/tmp/b"
	o.CompressLevel = 0
	if err := o.Normalize(); err != nil {
		t.Fatal(err)
	}
	if o.CompressLevel != 9 {
		t.Errorf("CompressLevel = %d, want 9", o.CompressLevel)
	}
}
