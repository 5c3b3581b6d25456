package trace

import (
	"io"
	"path/filepath"
	"testing"

	"retrace/pkg/tracee"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events")
	h := NewHeader(hostArch, 4096)

	w, err := CreateWriter(path, h)
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}

	records := []*Record{
		{Seq: 0, Logical: 1, Kind: KindInit, Argv: []string{"/bin/true"}},
		{Seq: 1, Logical: 1, Kind: KindSyscallEntry, SyscallNo: 1},
		{Seq: 2, Logical: 1, Kind: KindSyscallExit, SyscallResult: 0},
		{Seq: 3, Logical: 1, Kind: KindExit, ExitStatus: 0},
	}
	for _, r := range records {
		if err := w.Append(r); err != nil {
			t.Fatalf("Append seq %d: %v", r.Seq, err)
		}
	}
	entries := []TidIndexEntry{{Logical: tracee.LogicalTID(1), FirstOffset: uint64(HeaderSize), EventCount: uint64(len(records))}}
	h, err = w.WriteIndex(h, entries)
	if err != nil {
		t.Fatalf("WriteIndex: %v", err)
	}
	if err := w.PatchHeader(h); err != nil {
		t.Fatalf("PatchHeader: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()

	var got []*Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		got = append(got, rec)
	}
	if len(got) != len(records) {
		t.Fatalf("read %d records, want %d", len(got), len(records))
	}
	for i, rec := range got {
		if rec.Seq != records[i].Seq || rec.Kind != records[i].Kind {
			t.Errorf("record %d: got seq=%d kind=%s, want seq=%d kind=%s", i, rec.Seq, rec.Kind, records[i].Seq, records[i].Kind)
		}
	}

	idx, err := r.ReadIndex()
	if err != nil {
		t.Fatalf("ReadIndex: %v", err)
	}
	if len(idx) != 1 || idx[0].EventCount != uint64(len(records)) {
		t.Fatalf("ReadIndex mismatch: %+v", idx)
	}
}

func TestAppendOutOfOrderRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events")
	w, err := CreateWriter(path, NewHeader(hostArch, 4096))
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}
	defer w.Close()

	if err := w.Append(&Record{Seq: 1, Kind: KindInit}); err == nil {
		t.Fatal("expected error appending out-of-sequence record")
	}
}

func TestOpenReaderTruncatesPartialTrailingRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events")
	w, err := CreateWriter(path, NewHeader(hostArch, 4096))
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}
	if err := w.Append(&Record{Seq: 0, Logical: 1, Kind: KindInit, Argv: []string{"/bin/true"}}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	good := w.Offset()

	// Simulate a crash mid-write of the next record: a length prefix
	// claiming more payload bytes than actually follow it.
	partial := (&Record{Seq: 1, Logical: 1, Kind: KindSyscallEntry}).Encode()
	if _, err := w.f.WriteAt(partial[:len(partial)-3], good); err != nil {
		t.Fatalf("simulate partial write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()

	var count int
	for {
		_, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		count++
	}
	if count != 1 {
		t.Fatalf("read %d records after truncation, want 1 (the partial trailing record must be dropped)", count)
	}
}

func TestOpenReaderRejectsMismatchedArch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events")
	wrong := ArchAMD64
	if hostArch == ArchAMD64 {
		wrong = ArchARM64
	}
	w, err := CreateWriter(path, NewHeader(wrong, 4096))
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}
	w.Close()

	if _, err := OpenReader(path); err == nil {
		t.Fatal("expected error opening a trace recorded for a different architecture")
	}
}
