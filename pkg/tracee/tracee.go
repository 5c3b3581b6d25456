// Package tracee implements the ptrace-based tracee controller: the
// substrate the recorder and replayer engines both drive. It single-steps
// or runs a supervised process to the next event of interest (syscall
// boundary, signal, clone, branch-budget exhaustion, or exit) and mediates
// all register and memory access to it.
package tracee

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"syscall"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sys/unix"

	"retrace/pkg/hpc"
)

// regHistorySize bounds how many tids' most-recent register snapshots the
// controller keeps for divergence diagnostics (see Controller.LastRegs):
// large enough to cover a typical multi-threaded tracee's thread count,
// small enough that a tracee cloning thousands of short-lived threads
// doesn't grow it unbounded.
const regHistorySize = 256

// State is a tracee's position in the state machine of spec §4.1.
type State int

const (
	// StateRunning means the tracee is executing and not currently stopped.
	StateRunning State = iota
	// StateStoppedAtSyscallEntry is the synthetic pre-execve stop, or a
	// real syscall-entry ptrace stop.
	StateStoppedAtSyscallEntry
	// StateStoppedAtSyscallExit is a syscall-exit ptrace stop.
	StateStoppedAtSyscallExit
	// StateStoppedAtSignal is a signal-delivery-stop.
	StateStoppedAtSignal
	// StateStoppedAtClone is a clone/fork/vfork ptrace-event stop. An exec
	// ptrace-event stop is recorded as StateStoppedAtSyscallExit instead.
	StateStoppedAtClone
	// StateStoppedAtBranchBudget is an HPC overflow stop.
	StateStoppedAtBranchBudget
	// StateExited is the terminal state.
	StateExited
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "Running"
	case StateStoppedAtSyscallEntry:
		return "Stopped-AtSyscallEntry"
	case StateStoppedAtSyscallExit:
		return "Stopped-AtSyscallExit"
	case StateStoppedAtSignal:
		return "Stopped-AtSignal"
	case StateStoppedAtClone:
		return "Stopped-AtClone"
	case StateStoppedAtBranchBudget:
		return "Stopped-AtBranchBudget"
	case StateExited:
		return "Exited"
	default:
		return "Unknown"
	}
}

// LogicalTID is a supervisor-assigned identifier stable across record and
// replay, decoupled from the OS process/thread id (§3).
type LogicalTID uint32

// Tracee is a supervised process or thread.
type Tracee struct {
	Logical LogicalTID
	Pid     int

	state State
	cause StopCause

	regs     unix.PtraceRegs
	haveRegs bool

	counter *hpc.Counter

	// inSyscall distinguishes entry from exit stops, mirroring the
	// teacher's Tracee.inSyscall flag.
	inSyscall bool
}

// StopCause records why a tracee last left StateRunning.
type StopCause struct {
	State  State
	Signal unix.Signal
	Event  int // PTRACE_EVENT_* for clone-family stops
	Status unix.WaitStatus
}

// Controller drives one or more tracees through ptrace. It is not safe for
// concurrent use: the supervisor is single-threaded cooperative (spec §5).
type Controller struct {
	byPid     map[int]*Tracee
	byLogical map[LogicalTID]*Tracee
	nextLTID  LogicalTID

	// regHistory holds the last register snapshot read for each tid, so a
	// divergence report can show what every other live tid was doing
	// without re-reading the trace (spec §7's divergence diagnostics).
	regHistory *lru.Cache[LogicalTID, unix.PtraceRegs]
}

// NewController creates an empty controller.
func NewController() *Controller {
	history, _ := lru.New[LogicalTID, unix.PtraceRegs](regHistorySize)
	return &Controller{
		byPid:      make(map[int]*Tracee),
		regHistory: history,
		byLogical: make(map[LogicalTID]*Tracee),
	}
}

// ByPid looks up a tracee by OS pid.
func (c *Controller) ByPid(pid int) (*Tracee, bool) {
	t, ok := c.byPid[pid]
	return t, ok
}

// ByLogical looks up a tracee by logical tid.
func (c *Controller) ByLogical(ltid LogicalTID) (*Tracee, bool) {
	t, ok := c.byLogical[ltid]
	return t, ok
}

// Tracees returns all currently known tracees.
func (c *Controller) Tracees() []*Tracee {
	out := make([]*Tracee, 0, len(c.byPid))
	for _, t := range c.byPid {
		out = append(out, t)
	}
	return out
}

func (c *Controller) adopt(pid int) *Tracee {
	ltid := c.nextLTID
	c.nextLTID++
	t := &Tracee{Logical: ltid, Pid: pid, state: StateStoppedAtSyscallEntry}
	c.byPid[pid] = t
	c.byLogical[ltid] = t
	return t
}

// AdoptKnownLogical registers a newly observed OS pid under a logical tid
// chosen by the caller (used by the replayer, which must bind the native
// clone's OS pid to the logical tid recorded in the trace, §4.7).
func (c *Controller) AdoptKnownLogical(pid int, ltid LogicalTID) *Tracee {
	t := &Tracee{Logical: ltid, Pid: pid, state: StateStoppedAtSyscallEntry}
	c.byPid[pid] = t
	c.byLogical[ltid] = t
	if ltid >= c.nextLTID {
		c.nextLTID = ltid + 1
	}
	return t
}

// AllocateLogical reserves and returns a fresh logical tid, for callers
// (the recorder, on observing a clone) that must mint one before the
// controller has otherwise seen the new pid.
func (c *Controller) AllocateLogical() LogicalTID {
	ltid := c.nextLTID
	c.nextLTID++
	return ltid
}

func (c *Controller) forget(t *Tracee) {
	delete(c.byPid, t.Pid)
	delete(c.byLogical, t.Logical)
}

// PTRACE_O_EXITKILL means the kernel sends every tracee SIGKILL if this
// process dies before detaching, so an interrupted supervisor never leaves
// an orphaned, still-ptraced child running unsupervised (original_source/
// main.c's sig_child handler achieved the same end explicitly with
// kill(child, SIGQUIT); the kernel does it for us once this option is set).
const ptraceOptions = unix.PTRACE_O_TRACESYSGOOD |
	unix.PTRACE_O_TRACEFORK |
	unix.PTRACE_O_TRACEVFORK |
	unix.PTRACE_O_TRACECLONE |
	unix.PTRACE_O_TRACEEXEC |
	unix.PTRACE_O_TRACEEXIT |
	unix.PTRACE_O_EXITKILL

// Spawn execs exe under ptrace and returns the new tracee, stopped before
// its first user instruction (the synthetic pre-execve stop, §4.1).
//
// The caller must have called runtime.LockOSThread; ptrace state is
// per-OS-thread.
func (c *Controller) Spawn(exe string, argv, envp []string) (*Tracee, error) {
	return c.SpawnIO(exe, argv, envp, os.Stdin, os.Stdout, os.Stderr)
}

// SpawnIO behaves like Spawn but wires the tracee's stdin/stdout/stderr to
// the given streams instead of the supervisor's own, for callers (the
// recorder under --redirect_output) that tee the tracee's output through
// pkg/ioredirect rather than connecting it directly to the controlling
// terminal.
func (c *Controller) SpawnIO(exe string, argv, envp []string, stdin io.Reader, stdout, stderr io.Writer) (*Tracee, error) {
	cmd := exec.Command(exe, argv...)
	cmd.Env = envp
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Ptrace: true}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn %s: %w", exe, err)
	}

	pid := cmd.Process.Pid
	var ws unix.WaitStatus
	if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
		return nil, fmt.Errorf("spawn %s: initial wait4: %w", exe, err)
	}
	if !ws.Stopped() {
		return nil, fmt.Errorf("spawn %s: child not stopped after traceme (status %v)", exe, ws)
	}

	if err := unix.PtraceSetOptions(pid, ptraceOptions); err != nil {
		return nil, fmt.Errorf("spawn %s: ptrace setoptions: %w", exe, err)
	}

	t := c.adopt(pid)
	counter, err := hpc.Open(pid)
	if err != nil {
		return nil, fmt.Errorf("spawn %s: hpc open: %w", exe, err)
	}
	t.counter = counter
	return t, nil
}

// Detach releases a tracee, letting it continue unsupervised.
func (c *Controller) Detach(t *Tracee) error {
	if t.counter != nil {
		t.counter.Close()
	}
	c.forget(t)
	return unix.PtraceDetach(t.Pid)
}

// ReadRegs reads t's full register snapshot.
func (c *Controller) ReadRegs(t *Tracee) (unix.PtraceRegs, error) {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(t.Pid, &regs); err != nil {
		return regs, fmt.Errorf("getregs pid %d: %w", t.Pid, err)
	}
	t.regs, t.haveRegs = regs, true
	c.regHistory.Add(t.Logical, regs)
	return regs, nil
}

// LastRegs returns the most recent register snapshot read for ltid, even if
// ltid is no longer live, for diagnostics printed alongside a divergence
// report (spec §7). ok is false if no snapshot for ltid has been observed
// or it has since been evicted.
func (c *Controller) LastRegs(ltid LogicalTID) (regs unix.PtraceRegs, ok bool) {
	return c.regHistory.Get(ltid)
}

// WriteRegs writes t's full register snapshot.
func (c *Controller) WriteRegs(t *Tracee, regs unix.PtraceRegs) error {
	if err := unix.PtraceSetRegs(t.Pid, &regs); err != nil {
		return fmt.Errorf("setregs pid %d: %w", t.Pid, err)
	}
	t.regs, t.haveRegs = regs, true
	return nil
}

// ReadMem reads len(buf) bytes from t's address space at addr.
func (c *Controller) ReadMem(t *Tracee, addr uint64, buf []byte) (int, error) {
	n, err := unix.PtracePeekData(t.Pid, uintptr(addr), buf)
	if err != nil {
		return n, fmt.Errorf("peekdata pid %d addr %#x: %w", t.Pid, addr, err)
	}
	return n, nil
}

// WriteMem writes buf into t's address space at addr.
func (c *Controller) WriteMem(t *Tracee, addr uint64, buf []byte) (int, error) {
	n, err := unix.PtracePokeData(t.Pid, uintptr(addr), buf)
	if err != nil {
		return n, fmt.Errorf("pokedata pid %d addr %#x: %w", t.Pid, addr, err)
	}
	return n, nil
}

// ContToSyscall resumes t until the next syscall-entry or syscall-exit stop.
func (c *Controller) ContToSyscall(t *Tracee) error {
	t.state = StateRunning
	return unix.PtraceSyscall(t.Pid, 0)
}

// SingleStep resumes t for exactly one instruction.
func (c *Controller) SingleStep(t *Tracee) error {
	t.state = StateRunning
	return unix.PtraceSinglestep(t.Pid, 0)
}

// ContToBranchBudget arms t's retired-branch counter to
// overflow after exactly n increments and resumes t with PTRACE_SYSCALL, so
// the tracee stops at whichever comes first: the branch budget expiring or
// the next syscall entry/exit (spec §4.4's "a tracee runs until ... its
// branch budget expires [or] it enters a syscall"). The counter is bound to
// t's thread, so the kernel does not advance it while t is stopped and
// counts attribute only to t's own execution.
func (c *Controller) ContToBranchBudget(t *Tracee, n uint64) error {
	return c.ContToBranchBudgetWithSignal(t, n, 0)
}

// ContToBranchBudgetWithSignal behaves like ContToBranchBudget but also
// forwards sig to the tracee, combining the overflow-arming and the
// signal-forwarding resume into the single ptrace call ptrace requires
// (spec §4.6: "the recorder neither suppresses nor alters" a delivered
// signal -- a separate resume call after arming would race the tracee,
// which is no longer in a ptrace-stop by the time the second call runs).
func (c *Controller) ContToBranchBudgetWithSignal(t *Tracee, n uint64, sig unix.Signal) error {
	if t.counter == nil {
		return fmt.Errorf("branch budget resume pid %d: no hpc counter", t.Pid)
	}
	if err := t.counter.ArmOverflow(n); err != nil {
		return fmt.Errorf("arm overflow pid %d: %w", t.Pid, err)
	}
	t.state = StateRunning
	return unix.PtraceSyscall(t.Pid, int(sig))
}

// RetiredBranches reads t's retired-branch count since the counter was last
// reset.
func (c *Controller) RetiredBranches(t *Tracee) (uint64, error) {
	if t.counter == nil {
		return 0, fmt.Errorf("retired branches pid %d: no hpc counter", t.Pid)
	}
	return t.counter.Read()
}

// ResetBranchCounter zeroes t's retired-branch counter, marking a new
// accounting interval (e.g. the boundary between two trace events).
func (c *Controller) ResetBranchCounter(t *Tracee) error {
	if t.counter == nil {
		return fmt.Errorf("reset branch counter pid %d: no hpc counter", t.Pid)
	}
	return t.counter.Reset()
}

func init() {
	// ptrace is per-OS-thread; callers that spawn or attach must lock
	// their goroutine to an OS thread for the lifetime of the session.
	// This is documented here rather than enforced, matching the
	// teacher's TraceCmd, which calls LockOSThread itself rather than
	// asserting on the caller.
	_ = runtime.LockOSThread
}
