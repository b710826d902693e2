package pathresolve

import "testing"

func TestResolveRootWithoutTrailingSlash(t *testing.T) {
	got := Resolve("/dest", "/home/user/docs", "")
	want := "/dest/docs"
	if got != want {
		t.Errorf("Resolve(...) = %q, want %q", got, want)
	}
}

func TestResolveRootWithTrailingSlash(t *testing.T) {
	got := Resolve("/dest", "/home/user/docs/", "")
	want := "/dest"
	if got != want {
		t.Errorf("Resolve(...) = %q, want %q", got, want)
	}
}

func TestResolveChildWithoutTrailingSlashPrependsBasename(t *testing.T) {
	got := Resolve("/dest", "/home/user/docs", "notes.txt")
	want := "/dest/docs/notes.txt"
	if got != want {
		t.Errorf("Resolve(...) = %q, want %q", got, want)
	}
}

func TestResolveChildWithTrailingSlash(t *testing.T) {
	got := Resolve("/dest", "/home/user/docs/", "notes.txt")
	want := "/dest/notes.txt"
	if got != want {
		t.Errorf("Resolve(...) = %q, want %q", got, want)
	}
}
