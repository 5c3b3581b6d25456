package tracee

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestRegDiffIdentical(t *testing.T) {
	var a, b unix.PtraceRegs
	if diff := RegDiff(a, b); diff != "" {
		t.Errorf("RegDiff(identical) = %q, want \"\"", diff)
	}
}

func TestRegDiffReportsReturn(t *testing.T) {
	var a, b unix.PtraceRegs
	SetReturn(&a, 1)
	SetReturn(&b, 2)
	if diff := RegDiff(a, b); diff == "" {
		t.Fatal("RegDiff should report a difference when the return register differs")
	}
}

func TestSyscallRoundTrip(t *testing.T) {
	var regs unix.PtraceRegs
	SetSyscall(&regs, 42)
	if got := Syscall(regs); got != 42 {
		t.Errorf("Syscall() = %d, want 42", got)
	}
}

func TestArgRoundTrip(t *testing.T) {
	var regs unix.PtraceRegs
	for i := 0; i < 6; i++ {
		SetArg(&regs, i, uint64(i+1))
	}
	for i := 0; i < 6; i++ {
		if got := Arg(regs, i); got != uint64(i+1) {
			t.Errorf("Arg(%d) = %d, want %d", i, got, i+1)
		}
	}
	args := Args(regs)
	for i := 0; i < 6; i++ {
		if args[i] != uint64(i+1) {
			t.Errorf("Args()[%d] = %d, want %d", i, args[i], i+1)
		}
	}
}

func TestReturnRoundTrip(t *testing.T) {
	var regs unix.PtraceRegs
	SetReturn(&regs, -22)
	if got := Return(regs); got != -22 {
		t.Errorf("Return() = %d, want -22", got)
	}
}

func TestStateString(t *testing.T) {
	if StateRunning.String() != "Running" {
		t.Errorf("StateRunning.String() = %q", StateRunning.String())
	}
	if State(99).String() != "Unknown" {
		t.Errorf("unknown state should stringify to Unknown")
	}
}

func TestControllerAllocateLogicalIsMonotonic(t *testing.T) {
	c := NewController()
	a := c.AllocateLogical()
	b := c.AllocateLogical()
	if b <= a {
		t.Errorf("AllocateLogical not monotonic: a=%d b=%d", a, b)
	}
}

func TestControllerAdoptKnownLogicalAdvancesCounter(t *testing.T) {
	c := NewController()
	c.AdoptKnownLogical(1234, LogicalTID(50))
	next := c.AllocateLogical()
	if next <= 50 {
		t.Errorf("AllocateLogical after AdoptKnownLogical(50) = %d, want > 50", next)
	}

	tr, ok := c.ByLogical(LogicalTID(50))
	if !ok || tr.Pid != 1234 {
		t.Errorf("ByLogical(50) = %+v, %v, want pid 1234", tr, ok)
	}
	tr2, ok := c.ByPid(1234)
	if !ok || tr2.Logical != 50 {
		t.Errorf("ByPid(1234) = %+v, %v, want logical 50", tr2, ok)
	}
}

func TestControllerLastRegsUnknownTidMiss(t *testing.T) {
	c := NewController()
	if _, ok := c.LastRegs(LogicalTID(7)); ok {
		t.Error("LastRegs for a never-seen tid should report ok=false")
	}
}
