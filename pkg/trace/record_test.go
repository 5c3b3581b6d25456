package trace

import (
	"reflect"
	"testing"

	"retrace/pkg/tracee"
)

func TestRecordEncodeDecodeRoundTrip(t *testing.T) {
	cases := []*Record{
		{
			Seq:     0,
			Logical: 1,
			Kind:    KindInit,
			Argv:    []string{"/bin/true", "-x"},
			Envp:    []string{"PATH=/bin"},
			Auxv:    []uint64{1, 2, 3},
		},
		{
			Seq:             1,
			Logical:         1,
			Kind:            KindSyscallEntry,
			RetiredBranches: 42,
			SyscallNo:       1,
			SyscallArgs:     [6]uint64{1, 2, 3, 4, 5, 6},
		},
		{
			Seq:           2,
			Logical:       1,
			Kind:          KindSyscallExit,
			SyscallResult: -1,
			Restarted:     true,
			MemoryDeltas: []MemoryDelta{
				{Addr: 0x1000, Data: []byte("hello")},
				{Addr: 0x2000, Data: []byte{}},
			},
		},
		{
			Seq:               3,
			Logical:           1,
			Kind:              KindSignal,
			Signo:             11,
			SiginfoCode:       1,
			DeliveredAtBranch: 7,
		},
		{
			Seq:        4,
			Logical:    1,
			Kind:       KindClone,
			NewLogical: 2,
			CloneFlags: 0x1200011,
		},
		{
			Seq:        5,
			Logical:    2,
			Kind:       KindExit,
			ExitStatus: 0,
		},
	}

	for _, want := range cases {
		buf := want.Encode()
		// strip the 4-byte length prefix Encode adds; Decode expects a bare payload
		got, err := Decode(buf[4:])
		if err != nil {
			t.Fatalf("kind %s: decode: %v", want.Kind, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("kind %s: round trip mismatch\n got: %+v\nwant: %+v", want.Kind, got, want)
		}
	}
}

func TestDecodeTruncated(t *testing.T) {
	r := &Record{Seq: 1, Logical: 1, Kind: KindSignal, Signo: 11}
	buf := r.Encode()
	payload := buf[4:]

	if _, err := Decode(payload[:len(payload)-2]); err == nil {
		t.Fatal("expected error decoding truncated payload")
	}
}

func TestKindString(t *testing.T) {
	if got := KindSyscallEntry.String(); got != "SYSCALL_ENTRY" {
		t.Errorf("KindSyscallEntry.String() = %q", got)
	}
	if got := Kind(200).String(); got == "" {
		t.Errorf("unknown kind should still stringify, got empty")
	}
}

func TestRecordLogicalTIDType(t *testing.T) {
	r := &Record{Logical: tracee.LogicalTID(5), Kind: KindSched}
	buf := r.Encode()
	got, err := Decode(buf[4:])
	if err != nil {
		t.Fatal(err)
	}
	if got.Logical != 5 {
		t.Errorf("Logical = %d, want 5", got.Logical)
	}
}
