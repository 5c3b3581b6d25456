package synctab

import "testing"

func TestLookupFallsBackToTransparent(t *testing.T) {
	tbl := Table{1: {Name: "write", Policy: Transparent}}
	e := tbl.Lookup(9999)
	if e.Policy != Transparent || len(e.Buffers) != 0 {
		t.Errorf("Lookup(unknown) = %+v, want zero-value Transparent entry", e)
	}
}

func TestLookupKnownEntry(t *testing.T) {
	e := AMD64.Lookup(0) // read
	if e.Name != "read" || e.Policy != BufferWriting {
		t.Errorf("AMD64.Lookup(0) = %+v, want read/BufferWriting", e)
	}
	if len(e.Buffers) != 1 || !e.Buffers[0].LenFromResult {
		t.Errorf("read entry buffers = %+v, want one LenFromResult buffer", e.Buffers)
	}
}

func TestPolicyString(t *testing.T) {
	cases := map[Policy]string{
		Transparent:   "transparent",
		BufferWriting: "buffer-writing",
		ReExecute:     "re-execute",
		Policy(99):    "unknown",
	}
	for p, want := range cases {
		if got := p.String(); got != want {
			t.Errorf("Policy(%d).String() = %q, want %q", p, got, want)
		}
	}
}

func TestForHostArchReturnsNonEmptyTable(t *testing.T) {
	tbl := ForHostArch()
	if len(tbl) == 0 {
		t.Fatal("ForHostArch returned an empty table")
	}
}

func TestAMD64AndARM64AgreeOnPolicyNames(t *testing.T) {
	// Both tables classify read(2) as a result-length buffer-writing
	// syscall, even though the two ABIs assign it a different number.
	for arch, tbl := range map[string]Table{"amd64": AMD64, "arm64": ARM64} {
		e, ok := tbl[readSyscallNo(arch)]
		if !ok || e.Policy != BufferWriting {
			t.Errorf("%s: read(2) entry = %+v, ok=%v, want BufferWriting", arch, e, ok)
		}
	}
}

func readSyscallNo(arch string) uint64 {
	if arch == "arm64" {
		return 63
	}
	return 0
}

func TestAMD64AndARM64AgreeOnReadvIsBufferWriting(t *testing.T) {
	// readv(2) fills its buffers exactly like read(2); it must capture on
	// exit or a traced program using it would diverge on replay.
	for arch, tbl := range map[string]Table{"amd64": AMD64, "arm64": ARM64} {
		e, ok := tbl[readvSyscallNo(arch)]
		if !ok || e.Policy != BufferWriting {
			t.Errorf("%s: readv(2) entry = %+v, ok=%v, want BufferWriting", arch, e, ok)
		}
		if len(e.Buffers) != 1 || !e.Buffers[0].IOVec {
			t.Errorf("%s: readv(2) buffers = %+v, want one IOVec buffer", arch, e.Buffers)
		}
	}
}

func readvSyscallNo(arch string) uint64 {
	if arch == "arm64" {
		return 65
	}
	return 19
}
