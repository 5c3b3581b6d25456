// Package replayer implements the replayer engine of spec §4.7: it drives
// the same tracee controller the recorder used, but takes its schedule
// entirely from the trace instead of from live ptrace stops, and at every
// rendezvous point either lets the kernel re-execute a syscall natively or
// skips the kernel and synthesizes the recorded result.
package replayer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"golang.org/x/sys/unix"

	"retrace/pkg/evtlog"
	"retrace/pkg/sched"
	"retrace/pkg/synctab"
	"retrace/pkg/trace"
	"retrace/pkg/tracedir"
	"retrace/pkg/tracee"
)

// ErrDivergence is returned when a replayed tracee's state does not match
// the trace at a rendezvous point (spec §7).
var ErrDivergence = errors.New("replayer: execution diverges from trace")

// maxRendezvousSingleSteps bounds how many single-steps rendezvous will
// spend closing the gap between an HPC overflow stop and the exact
// retired-branch count recorded for this event, before giving up and
// reporting a divergence (spec §4.1: "say 64").
const maxRendezvousSingleSteps = 64

// Config configures a replay session.
type Config struct {
	TraceDir string
	Logger   evtlog.Logger
}

// Session is one replay run.
type Session struct {
	cfg    Config
	layout tracedir.Layout
	reader *trace.Reader
	rsched *sched.ReplayScheduler
	ctrl   *tracee.Controller
	table  synctab.Table

	live    map[tracee.LogicalTID]*tracee.Tracee
	pending map[tracee.LogicalTID]unix.Signal
	exe     string
	argv    []string
	envp    []string
}

// Run replays the trace in cfg.TraceDir to completion, returning
// ErrDivergence (wrapped with the event and register that diverged) the
// first time replay cannot reproduce the recorded execution.
func Run(cfg Config) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if cfg.Logger == nil {
		cfg.Logger = evtlog.NewStreamLogger(os.Stderr)
	}

	layout, err := tracedir.Open(cfg.TraceDir)
	if err != nil {
		return fmt.Errorf("replayer: %w", err)
	}

	argv, envp, err := trace.ReadArgvEnvp(layout.ArgvEnvpPath())
	if err != nil {
		return fmt.Errorf("replayer: %w", err)
	}

	reader, err := trace.OpenReader(layout.EventsPath())
	if err != nil {
		return fmt.Errorf("replayer: %w", err)
	}
	defer reader.Close()

	s := &Session{
		cfg:    cfg,
		layout: layout,
		reader: reader,
		rsched: sched.NewReplayScheduler(reader),
		ctrl:   tracee.NewController(),
		table:  synctab.ForHostArch(),
		live:    map[tracee.LogicalTID]*tracee.Tracee{},
		pending: map[tracee.LogicalTID]unix.Signal{},
		argv:    argv,
		envp:    envp,
	}
	if len(argv) > 0 {
		s.exe = argv[0]
	}

	for {
		rec, err := s.rsched.PickNext()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("replayer: %w", err)
		}

		if s.cfg.Logger != nil {
			s.cfg.Logger.LogRecord(rec, s.table)
		}

		if err := s.apply(rec); err != nil {
			return err
		}
	}
}

func (s *Session) apply(rec *trace.Record) error {
	switch rec.Kind {
	case trace.KindInit:
		return s.applyInit(rec)
	case trace.KindSyscallEntry:
		return s.applySyscallEntry(rec)
	case trace.KindSyscallExit:
		return s.applySyscallExit(rec)
	case trace.KindSignal:
		return s.applySignal(rec)
	case trace.KindClone:
		return s.applyClone(rec)
	case trace.KindSched:
		return s.applySched(rec)
	case trace.KindExit:
		return s.applyExit(rec)
	default:
		return fmt.Errorf("replayer: unknown record kind %d", rec.Kind)
	}
}

// applyInit spawns the traced program's first logical tid. The trace's
// argv/envp, not the live environment, determine what runs (spec §4.7's
// "replay never consults the environment").
func (s *Session) applyInit(rec *trace.Record) error {
	if s.exe == "" {
		return fmt.Errorf("replayer: INIT record with no recorded argv")
	}
	t, err := s.ctrl.Spawn(s.exe, s.argv[1:], s.envp)
	if err != nil {
		return fmt.Errorf("replayer: respawn: %w", err)
	}
	s.live[rec.Logical] = t
	return nil
}

// rendezvous advances t (the tracee named by rec.Logical) by exactly
// rec.RetiredBranches branches and, if checkRegs is set, verifies its
// register state matches the recorded snapshot, naming the first
// mismatching register on divergence (spec §4.7, §7).
//
// checkRegs is false for SYSCALL_EXIT: the exit trap is reached with the
// syscall already forced to a no-op (applySyscallEntry's skip-the-kernel
// patch), so the live result register legitimately differs from the
// recorded snapshot until applySyscallExit restores it a few lines below.
// Comparing there would report a divergence that isn't one; the real
// verification for that boundary already happened at SYSCALL_ENTRY.
func (s *Session) rendezvous(rec *trace.Record, checkRegs bool) (*tracee.Tracee, tracee.Event, error) {
	t, ok := s.live[rec.Logical]
	if !ok {
		return nil, tracee.Event{}, fmt.Errorf("replayer: seq %d: tid %d not yet spawned/cloned", rec.Seq, rec.Logical)
	}

	sig := s.pending[rec.Logical]
	delete(s.pending, rec.Logical)
	if err := s.ctrl.ContToBranchBudgetWithSignal(t, rec.RetiredBranches, sig); err != nil {
		return nil, tracee.Event{}, fmt.Errorf("replayer: resume tid %d: %w", rec.Logical, err)
	}
	ev, err := s.ctrl.Wait()
	if err != nil {
		return nil, tracee.Event{}, fmt.Errorf("replayer: wait tid %d: %w", rec.Logical, err)
	}

	// The HPC overflow armed by ContToBranchBudgetWithSignal can trap a
	// handful of retired branches short of rec.RetiredBranches (interrupt
	// delivery skid) rather than landing exactly on it. Close that gap
	// one instruction at a time, bounded, before trusting this stop as
	// the recorded boundary -- this, not the register comparison below,
	// is the primary correctness check (spec §4.1, §4.7).
	for steps := 0; ev.Kind == tracee.EventBranchBudget || (ev.Kind == tracee.EventSignal && ev.Signal == unix.SIGTRAP); steps++ {
		got, rerr := s.ctrl.RetiredBranches(t)
		if rerr != nil {
			return nil, ev, fmt.Errorf("replayer: %w", rerr)
		}
		if got >= rec.RetiredBranches {
			break
		}
		if steps >= maxRendezvousSingleSteps {
			return nil, ev, fmt.Errorf("%w: tid %d seq %d: %d retired branches short of the recorded %d after %d single-steps",
				ErrDivergence, rec.Logical, rec.Seq, got, rec.RetiredBranches, maxRendezvousSingleSteps)
		}
		if serr := s.ctrl.SingleStep(t); serr != nil {
			return nil, ev, fmt.Errorf("replayer: single-step tid %d: %w", rec.Logical, serr)
		}
		ev, err = s.ctrl.Wait()
		if err != nil {
			return nil, ev, fmt.Errorf("replayer: wait tid %d: %w", rec.Logical, err)
		}
	}

	if ev.Kind == tracee.EventExited {
		if rec.Kind != trace.KindExit {
			return nil, ev, fmt.Errorf("%w: tid %d seq %d: exited before the recorded event", ErrDivergence, rec.Logical, rec.Seq)
		}
		return t, ev, nil
	}

	if !checkRegs {
		return t, ev, nil
	}
	regs, err := s.ctrl.ReadRegs(t)
	if err != nil {
		return nil, ev, fmt.Errorf("replayer: %w", err)
	}
	want := decodeRegs(rec.Regs)
	if diff := tracee.RegDiff(regs, want); diff != "" {
		return nil, ev, fmt.Errorf("%w: tid %d seq %d: register %s%s",
			ErrDivergence, rec.Logical, rec.Seq, diff, s.siblingContext(rec.Logical))
	}
	return t, ev, nil
}

// siblingContext renders the last known instruction pointer of every other
// live tid, so a divergence report shows what the rest of a multi-threaded
// tracee was doing at the moment one tid diverged (spec §7).
func (s *Session) siblingContext(diverged tracee.LogicalTID) string {
	var b strings.Builder
	for ltid := range s.live {
		if ltid == diverged {
			continue
		}
		regs, ok := s.ctrl.LastRegs(ltid)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n  tid %d last at pc=%#x", ltid, tracee.PC(regs))
	}
	return b.String()
}

func (s *Session) applySyscallEntry(rec *trace.Record) error {
	t, _, err := s.rendezvous(rec, true)
	if err != nil {
		return err
	}

	policy := s.table.Lookup(rec.SyscallNo)
	if policy.Policy == synctab.ReExecute {
		// Let the kernel run it; nothing else to do at entry.
		return nil
	}

	// Skip the kernel: force the syscall number to -1 so the kernel treats
	// it as a no-op, then restore it on the matching SYSCALL_EXIT so the
	// recorded return value and memory effects can be written back without
	// ever letting this syscall actually execute (spec §4.7).
	regs, err := s.ctrl.ReadRegs(t)
	if err != nil {
		return fmt.Errorf("replayer: %w", err)
	}
	tracee.SetSyscall(&regs, ^uint64(0))
	return s.ctrl.WriteRegs(t, regs)
}

func (s *Session) applySyscallExit(rec *trace.Record) error {
	t, _, err := s.rendezvous(rec, false)
	if err != nil {
		return err
	}

	policy := s.table.Lookup(rec.SyscallNo)
	if policy.Policy == synctab.ReExecute {
		return nil
	}

	regs, err := s.ctrl.ReadRegs(t)
	if err != nil {
		return fmt.Errorf("replayer: %w", err)
	}
	tracee.SetReturn(&regs, rec.SyscallResult)
	if err := s.ctrl.WriteRegs(t, regs); err != nil {
		return fmt.Errorf("replayer: %w", err)
	}

	for _, d := range rec.MemoryDeltas {
		if _, err := s.ctrl.WriteMem(t, d.Addr, d.Data); err != nil {
			return fmt.Errorf("replayer: write memory delta at %#x: %w", d.Addr, err)
		}
	}
	return nil
}

// applySignal reaches the recorded signal-delivery-stop, then arranges for
// the signal to be forwarded on this tid's *next* resume: ptrace only
// delivers a forwarded signal as part of resuming out of a stop, so the
// earliest point replay can redeliver rec.Signo is the next rendezvous for
// this tid, not this one (spec §4.7).
func (s *Session) applySignal(rec *trace.Record) error {
	_, _, err := s.rendezvous(rec, true)
	if err != nil {
		return err
	}
	s.pending[rec.Logical] = unix.Signal(rec.Signo)
	return nil
}

// applyClone reaches the recorded clone ptrace-event stop and binds the
// native child pid the kernel just created to the logical tid the trace
// assigned it at record time (spec §4.7).
func (s *Session) applyClone(rec *trace.Record) error {
	_, ev, err := s.rendezvous(rec, true)
	if err != nil {
		return err
	}
	if ev.Kind != tracee.EventClone {
		return fmt.Errorf("%w: tid %d seq %d: expected clone stop, got kind %d", ErrDivergence, rec.Logical, rec.Seq, ev.Kind)
	}

	child := s.ctrl.AdoptKnownLogical(ev.NewChildPid, rec.NewLogical)
	s.live[rec.NewLogical] = child
	return nil
}

func (s *Session) applySched(rec *trace.Record) error {
	_, _, err := s.rendezvous(rec, true)
	return err
}

func (s *Session) applyExit(rec *trace.Record) error {
	t, ok := s.live[rec.Logical]
	if !ok {
		return fmt.Errorf("replayer: exit for unknown tid %d", rec.Logical)
	}

	sig := s.pending[rec.Logical]
	delete(s.pending, rec.Logical)
	if err := s.ctrl.ContToBranchBudgetWithSignal(t, rec.RetiredBranches, sig); err != nil {
		return fmt.Errorf("replayer: %w", err)
	}
	ev, err := s.ctrl.Wait()
	if err != nil {
		return fmt.Errorf("replayer: %w", err)
	}
	if ev.Kind != tracee.EventExited {
		return fmt.Errorf("%w: tid %d seq %d: expected exit, got kind %d", ErrDivergence, rec.Logical, rec.Seq, ev.Kind)
	}

	gotStatus := int32(ev.ExitStatus)
	if ev.Signaled {
		gotStatus = -int32(ev.ExitSignal)
	}
	if gotStatus != rec.ExitStatus {
		return fmt.Errorf("%w: tid %d: exit status %d, want %d", ErrDivergence, rec.Logical, gotStatus, rec.ExitStatus)
	}
	delete(s.live, rec.Logical)
	return nil
}

// decodeRegs is the inverse of the recorder's encodeRegs: it reconstructs a
// register snapshot from the trace's fixed-width, arch-opaque byte slot.
func decodeRegs(buf [trace.RegsSize]byte) unix.PtraceRegs {
	var regs unix.PtraceRegs
	_ = binary.Read(bytes.NewReader(buf[:]), binary.LittleEndian, &regs)
	return regs
}
