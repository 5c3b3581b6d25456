package ioredirect

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenTeesStdoutAndStderrToFiles(t *testing.T) {
	dir := t.TempDir()
	stdoutPath := filepath.Join(dir, "stdout")
	stderrPath := filepath.Join(dir, "stderr")

	r, streams, err := Open(stdoutPath, stderrPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, err := streams.Stdout.Write([]byte("out line\n")); err != nil {
		t.Fatalf("write stdout: %v", err)
	}
	if _, err := streams.Stderr.Write([]byte("err line\n")); err != nil {
		t.Fatalf("write stderr: %v", err)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	gotOut, err := os.ReadFile(stdoutPath)
	if err != nil {
		t.Fatalf("read stdout file: %v", err)
	}
	if string(gotOut) != "out line\n" {
		t.Errorf("stdout file = %q, want %q", gotOut, "out line\n")
	}

	gotErr, err := os.ReadFile(stderrPath)
	if err != nil {
		t.Fatalf("read stderr file: %v", err)
	}
	if string(gotErr) != "err line\n" {
		t.Errorf("stderr file = %q, want %q", gotErr, "err line\n")
	}
}

func TestOpenFailsIfStdoutPathUncreatable(t *testing.T) {
	if _, _, err := Open(filepath.Join(t.TempDir(), "missing-dir", "stdout"), filepath.Join(t.TempDir(), "stderr")); err == nil {
		t.Fatal("expected error creating stdout file in a nonexistent directory")
	}
}
