package tracedir

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCreateAndOpen(t *testing.T) {
	root := filepath.Join(t.TempDir(), "trace1")
	l, err := Create(root)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if l.Root != root {
		t.Errorf("Root = %q, want %q", l.Root, root)
	}

	opened, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if opened.Root != root {
		t.Errorf("Open Root = %q, want %q", opened.Root, root)
	}
}

func TestOpenRejectsMissingDir(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "does-not-exist")); err == nil {
		t.Fatal("expected error opening a nonexistent trace directory")
	}
}

func TestOpenRejectsFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "afile")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if _, err := Open(path); err == nil {
		t.Fatal("expected error opening a plain file as a trace directory")
	}
}

func TestLayoutPaths(t *testing.T) {
	l := Layout{Root: "/tmp/trace"}
	cases := map[string]string{
		l.EventsPath():     "/tmp/trace/events",
		l.ArgvEnvpPath():   "/tmp/trace/argv_envp",
		l.StdoutPath():     "/tmp/trace/stdout",
		l.StderrPath():     "/tmp/trace/stderr",
		l.IndexDBPath():    "/tmp/trace/index.db",
		l.MemDumpPath(12):  "/tmp/trace/memdump-12",
	}
	for got, want := range cases {
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
}
