// Package tracedir lays out a trace on disk (spec §6): the events file,
// the argv/envp snapshot, redirected stdout/stderr, memory dumps, and a
// queryable SQLite index over the events file -- adapted from the
// teacher's pkg/db, which played the analogous "durable index over an
// append-only store" role for its overlay filesystem.
package tracedir

import (
	"fmt"
	"os"
	"path/filepath"
)

// Layout names the files that make up one trace directory.
type Layout struct {
	Root string
}

// Create makes a fresh, empty trace directory at root.
func Create(root string) (Layout, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return Layout{}, fmt.Errorf("tracedir: create %s: %w", root, err)
	}
	return Layout{Root: root}, nil
}

// Open opens an existing trace directory for replay or inspection.
func Open(root string) (Layout, error) {
	info, err := os.Stat(root)
	if err != nil {
		return Layout{}, fmt.Errorf("tracedir: open %s: %w", root, err)
	}
	if !info.IsDir() {
		return Layout{}, fmt.Errorf("tracedir: %s is not a directory", root)
	}
	return Layout{Root: root}, nil
}

// EventsPath is the binary event stream (spec §4.3).
func (l Layout) EventsPath() string { return filepath.Join(l.Root, "events") }

// ArgvEnvpPath is the recorded initial argv/envp (spec §6).
func (l Layout) ArgvEnvpPath() string { return filepath.Join(l.Root, "argv_envp") }

// StdoutPath is the recorded tracee stdout, when redirection is enabled.
func (l Layout) StdoutPath() string { return filepath.Join(l.Root, "stdout") }

// StderrPath is the recorded tracee stderr, when redirection is enabled.
func (l Layout) StderrPath() string { return filepath.Join(l.Root, "stderr") }

// IndexDBPath is the SQLite event index (this package's addition to the
// minimal on-disk layout named by the spec, for fast post-hoc queries
// without replaying).
func (l Layout) IndexDBPath() string { return filepath.Join(l.Root, "index.db") }

// MemDumpPath names the memory dump file for the global event sequence
// number seq (spec's --dump_memory=<n>, resolved in favor of the global
// sequence number; see the memdump package).
func (l Layout) MemDumpPath(seq int) string {
	return filepath.Join(l.Root, fmt.Sprintf("memdump-%d", seq))
}
