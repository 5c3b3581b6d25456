package evtlog

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"retrace/pkg/synctab"
	"retrace/pkg/trace"
)

func TestStreamLoggerRendersEachKind(t *testing.T) {
	var buf bytes.Buffer
	l := NewStreamLogger(&buf)
	table := synctab.ForHostArch()

	records := []*trace.Record{
		{Seq: 0, Logical: 1, Kind: trace.KindInit, Argv: []string{"/bin/true"}},
		{Seq: 1, Logical: 1, Kind: trace.KindSyscallEntry, SyscallNo: 1},
		{Seq: 2, Logical: 1, Kind: trace.KindSyscallExit, SyscallResult: 0},
		{Seq: 3, Logical: 1, Kind: trace.KindSignal, Signo: 11},
		{Seq: 4, Logical: 1, Kind: trace.KindClone, NewLogical: 2},
		{Seq: 5, Logical: 1, Kind: trace.KindSched},
		{Seq: 6, Logical: 1, Kind: trace.KindExit, ExitStatus: 0},
	}
	for _, r := range records {
		l.LogRecord(r, table)
	}

	out := buf.String()
	for _, want := range []string{"init argv=", "->", "<- =", "signal 11", "clone ->", "sched boundary", "exit status=0"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestFileLoggerWritesAndCloses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.log")
	l, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	l.LogRecord(&trace.Record{Seq: 0, Logical: 1, Kind: trace.KindExit, ExitStatus: 7}, synctab.ForHostArch())
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
