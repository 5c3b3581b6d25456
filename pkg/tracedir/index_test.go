package tracedir

import (
	"path/filepath"
	"testing"

	"retrace/pkg/trace"
	"retrace/pkg/tracee"
)

func TestIndexRecordAndQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenIndex(DefaultIndexConfig(path))
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	defer idx.Close()

	h := trace.NewHeader(trace.ArchAMD64, 4096)
	if err := idx.PutSessionInfo(h); err != nil {
		t.Fatalf("PutSessionInfo: %v", err)
	}

	records := []*trace.Record{
		{Seq: 0, Logical: 1, Kind: trace.KindInit},
		{Seq: 1, Logical: 1, Kind: trace.KindSyscallEntry, SyscallNo: 1},
		{Seq: 2, Logical: 1, Kind: trace.KindSyscallExit, SyscallResult: 0},
		{Seq: 3, Logical: 2, Kind: trace.KindClone, NewLogical: 2},
	}
	for i, r := range records {
		if err := idx.IndexRecord(r, int64(i*64)); err != nil {
			t.Fatalf("IndexRecord seq %d: %v", r.Seq, err)
		}
	}

	off, err := idx.FirstOffset(tracee.LogicalTID(2))
	if err != nil {
		t.Fatalf("FirstOffset: %v", err)
	}
	if off != 3*64 {
		t.Errorf("FirstOffset(2) = %d, want %d", off, 3*64)
	}

	n, err := idx.CountByKind(trace.KindSyscallEntry)
	if err != nil {
		t.Fatalf("CountByKind: %v", err)
	}
	if n != 1 {
		t.Errorf("CountByKind(SyscallEntry) = %d, want 1", n)
	}
}

func TestFirstOffsetUnknownTidErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenIndex(DefaultIndexConfig(path))
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	defer idx.Close()

	if _, err := idx.FirstOffset(tracee.LogicalTID(99)); err == nil {
		t.Fatal("expected error for a tid with no indexed events")
	}
}
