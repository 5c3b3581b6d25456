package recorder

import (
	"os/exec"
	"path/filepath"
	"testing"

	"retrace/pkg/trace"
	"retrace/pkg/tracedir"
)

// TestRecordTrueProducesInitAndExit records the real /bin/true binary and
// checks the resulting trace directory has a readable, well-formed events
// file bracketed by an INIT and an EXIT record. It skips on hosts that
// deny unprivileged ptrace or perf_event_open (see pkg/prereq), since both
// are required for any recording to start.
func TestRecordTrueProducesInitAndExit(t *testing.T) {
	exe, err := exec.LookPath("true")
	if err != nil {
		t.Skipf("no \"true\" binary on PATH: %v", err)
	}

	dir := t.TempDir()
	err = Run(Config{
		Executable: exe,
		TraceDir:   filepath.Join(dir, "trace"),
	})
	if err != nil {
		t.Skipf("recording unavailable in this environment: %v", err)
	}

	layout, err := tracedir.Open(filepath.Join(dir, "trace"))
	if err != nil {
		t.Fatalf("tracedir.Open: %v", err)
	}
	reader, err := trace.OpenReader(layout.EventsPath())
	if err != nil {
		t.Fatalf("trace.OpenReader: %v", err)
	}
	defer reader.Close()

	first, err := reader.Next()
	if err != nil {
		t.Fatalf("read first record: %v", err)
	}
	if first.Kind != trace.KindInit {
		t.Errorf("first record kind = %s, want INIT", first.Kind)
	}

	var last *trace.Record
	for {
		rec, err := reader.Next()
		if err != nil {
			break
		}
		last = rec
	}
	if last == nil || last.Kind != trace.KindExit {
		t.Errorf("last record = %+v, want an EXIT record", last)
	}
}
