package tracee

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// EventKind classifies a ptrace stop as the controller sees it, ahead of
// the recorder's own classification into trace event kinds (§4.6 keeps a
// richer, trace-facing taxonomy; this one is the controller-facing
// classification it consumes).
type EventKind int

const (
	// EventSyscall is a syscall-entry or syscall-exit stop (distinguished
	// by Tracee.inSyscall, which this package toggles).
	EventSyscall EventKind = iota
	// EventSignal is a signal-delivery-stop distinct from a syscall stop.
	EventSignal
	// EventClone is a fork/vfork/clone ptrace-event stop. An exec
	// ptrace-event stop is reported as an EventSyscall exit, not here.
	EventClone
	// EventBranchBudget is an HPC overflow stop.
	EventBranchBudget
	// EventExited is process termination (normal or signaled).
	EventExited
)

// Event is one observation returned by Wait.
type Event struct {
	Kind   EventKind
	Tracee *Tracee

	// Valid when Kind == EventSyscall.
	SyscallEntry bool

	// Valid when Kind == EventSignal.
	Signal unix.Signal

	// Valid when Kind == EventClone.
	NewChildPid int

	// Valid when Kind == EventExited.
	ExitStatus int
	ExitSignal unix.Signal
	Signaled   bool

	// NewlyAdopted is true the first time the controller observes this
	// pid (e.g. a clone's child arriving at wait before its CLONE stop
	// was processed).
	NewlyAdopted bool
}

// hpcOverflowSignal is the signal (SIGIO) the HPC driver's
// PERF_EVENT_IOC_REFRESH delivers on overflow (see pkg/hpc).
const hpcOverflowSignal = unix.SIGIO

// Wait blocks for the next ptrace stop from any tracee registered with c (or
// any not-yet-adopted child of one, e.g. a fresh clone) and classifies it.
func (c *Controller) Wait() (Event, error) {
	var ws unix.WaitStatus
	pid, err := unix.Wait4(-1, &ws, 0, nil)
	if err != nil {
		return Event{}, fmt.Errorf("wait4: %w", err)
	}

	t, known := c.byPid[pid]
	newlyAdopted := false
	if !known {
		t = c.adopt(pid)
		newlyAdopted = true
	}

	if ws.Exited() {
		ev := Event{Kind: EventExited, Tracee: t, ExitStatus: ws.ExitStatus(), NewlyAdopted: newlyAdopted}
		t.state = StateExited
		if t.counter != nil {
			t.counter.Close()
		}
		c.forget(t)
		return ev, nil
	}
	if ws.Signaled() {
		ev := Event{Kind: EventExited, Tracee: t, Signaled: true, ExitSignal: ws.Signal(), NewlyAdopted: newlyAdopted}
		t.state = StateExited
		if t.counter != nil {
			t.counter.Close()
		}
		c.forget(t)
		return ev, nil
	}
	if !ws.Stopped() {
		return Event{}, fmt.Errorf("pid %d: unexpected wait status %v", pid, ws)
	}

	sig := ws.StopSignal()

	if sig == unix.SIGTRAP|0x80 {
		entry := !t.inSyscall
		t.inSyscall = !t.inSyscall
		if entry {
			t.state = StateStoppedAtSyscallEntry
		} else {
			t.state = StateStoppedAtSyscallExit
		}
		t.cause = StopCause{State: t.state, Status: ws}
		return Event{Kind: EventSyscall, Tracee: t, SyscallEntry: entry, NewlyAdopted: newlyAdopted}, nil
	}

	if sig == unix.SIGTRAP {
		cause := ws.TrapCause()
		switch cause {
		case unix.PTRACE_EVENT_FORK, unix.PTRACE_EVENT_VFORK, unix.PTRACE_EVENT_CLONE:
			newPid, gerr := unix.PtraceGetEventMsg(pid)
			t.state = StateStoppedAtClone
			t.cause = StopCause{State: t.state, Event: cause, Status: ws}
			if gerr != nil {
				return Event{}, fmt.Errorf("pid %d: ptrace geteventmsg: %w", pid, gerr)
			}
			return Event{Kind: EventClone, Tracee: t, NewChildPid: int(newPid), NewlyAdopted: newlyAdopted}, nil
		case unix.PTRACE_EVENT_EXEC:
			// A syscall-exit stop for the execve still follows; do not
			// flip inSyscall here (mirrors the teacher's comment in
			// tracer.go's traceLoop for PTRACE_EVENT_EXEC).
			t.state = StateStoppedAtSyscallExit
			t.cause = StopCause{State: t.state, Event: cause, Status: ws}
			return Event{Kind: EventSyscall, Tracee: t, SyscallEntry: false, NewlyAdopted: newlyAdopted}, nil
		case unix.PTRACE_EVENT_EXIT:
			t.state = StateStoppedAtSignal
			t.cause = StopCause{State: t.state, Event: cause, Status: ws}
			return Event{Kind: EventSignal, Tracee: t, Signal: 0, NewlyAdopted: newlyAdopted}, nil
		}
	}

	if sig == hpcOverflowSignal && t.state == StateRunning {
		t.state = StateStoppedAtBranchBudget
		t.cause = StopCause{State: t.state, Signal: sig, Status: ws}
		return Event{Kind: EventBranchBudget, Tracee: t, NewlyAdopted: newlyAdopted}, nil
	}

	t.state = StateStoppedAtSignal
	t.cause = StopCause{State: t.state, Signal: sig, Status: ws}
	return Event{Kind: EventSignal, Tracee: t, Signal: sig, NewlyAdopted: newlyAdopted}, nil
}

// DeliverSignal resumes t, injecting sig (0 to suppress delivery).
func (c *Controller) DeliverSignal(t *Tracee, sig unix.Signal) error {
	t.state = StateRunning
	return unix.PtraceSyscall(t.Pid, int(sig))
}
