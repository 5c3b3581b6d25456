package prereq

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadProcInt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "val")
	if err := os.WriteFile(path, []byte("0\n"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	v, err := readProcInt(path)
	if err != nil {
		t.Fatalf("readProcInt: %v", err)
	}
	if v != 0 {
		t.Errorf("readProcInt = %d, want 0", v)
	}
}

func TestReadProcIntMissingFile(t *testing.T) {
	if _, err := readProcInt(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error reading a nonexistent /proc file")
	}
}

func TestCheckExecutableRejectsNonExecutableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notexec")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := CheckExecutable(path); err == nil {
		t.Fatal("expected error for a non-executable file")
	}
}

func TestCheckExecutableAcceptsExecutableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exec")
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := CheckExecutable(path); err != nil {
		t.Fatalf("CheckExecutable: %v", err)
	}
}

func TestCheckExecutableRejectsMissingFile(t *testing.T) {
	if err := CheckExecutable(filepath.Join(t.TempDir(), "ghost")); err == nil {
		t.Fatal("expected error for a nonexistent executable")
	}
}
