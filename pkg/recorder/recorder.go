// Package recorder implements the recorder engine of spec §4.6: the main
// loop that drives the tracee controller, classifies every stop, and
// serializes it through the trace codec.
//
// Concurrency note: a fully general preemptive scheduler (spec §4.4) would
// let any number of CPU-bound tracees compete for quanta in round-robin
// order while blocking syscalls free the supervisor to run others. This
// implementation keeps the faithful parts -- a single supervisor thread,
// branch-budget quanta, and the invariant that interleaving is recorded and
// deterministic on replay -- but resolves concurrency opportunistically
// rather than through a fully general ready queue: a newly cloned child is
// granted its first quantum immediately (so producer/consumer patterns like
// spec §8 scenario S3's pipe don't deadlock waiting for a round-robin turn
// that never comes), and the round-robin scheduler governs tie-breaking
// only among tracees whose budget has just expired at the same moment.
package recorder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sys/unix"

	"retrace/pkg/evtlog"
	"retrace/pkg/ioredirect"
	"retrace/pkg/memdump"
	"retrace/pkg/sched"
	"retrace/pkg/synctab"
	"retrace/pkg/trace"
	"retrace/pkg/tracedir"
	"retrace/pkg/tracee"
)

// Config configures a recording session.
type Config struct {
	Executable     string
	Argv           []string
	Envp           []string
	TraceDir       string
	SliceBranches  uint64
	DumpMemoryAt   uint64 // global event sequence number, checked after each syscall-exit record; 0 disables
	RedirectOutput bool
	Logger         evtlog.Logger
}

// Session is one recording run.
type Session struct {
	cfg    Config
	layout tracedir.Layout
	ctrl   *tracee.Controller
	rsched *sched.RecordScheduler
	writer *trace.Writer
	index  *tracedir.Index
	table  synctab.Table
	header trace.Header

	seq        uint64
	eventCount map[tracee.LogicalTID]uint64
}

// Run records cfg.Executable to cfg.TraceDir, returning once the tracee
// tree has fully exited.
func Run(cfg Config) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if cfg.SliceBranches == 0 {
		cfg.SliceBranches = sched.DefaultSliceBranches
	}
	if cfg.Logger == nil {
		cfg.Logger = evtlog.NewStreamLogger(os.Stderr)
	}

	layout, err := tracedir.Create(cfg.TraceDir)
	if err != nil {
		return fmt.Errorf("recorder: %w", err)
	}

	header := trace.NewHeader(hostArchTag(), os.Getpagesize())
	writer, err := trace.CreateWriter(layout.EventsPath(), header)
	if err != nil {
		return fmt.Errorf("recorder: create events file: %w", err)
	}
	defer writer.Close()

	index, err := tracedir.OpenIndex(tracedir.DefaultIndexConfig(layout.IndexDBPath()))
	if err != nil {
		return fmt.Errorf("recorder: %w", err)
	}
	defer index.Close()
	if err := index.PutSessionInfo(header); err != nil {
		return fmt.Errorf("recorder: %w", err)
	}

	s := &Session{
		cfg:        cfg,
		layout:     layout,
		ctrl:       tracee.NewController(),
		rsched:     sched.NewRecordScheduler(cfg.SliceBranches),
		writer:     writer,
		index:      index,
		table:      synctab.ForHostArch(),
		header:     header,
		eventCount: map[tracee.LogicalTID]uint64{},
	}

	fullArgv := append([]string{cfg.Executable}, cfg.Argv...)
	if err := trace.WriteArgvEnvp(layout.ArgvEnvpPath(), fullArgv, cfg.Envp); err != nil {
		return fmt.Errorf("recorder: %w", err)
	}

	var t *tracee.Tracee
	if cfg.RedirectOutput {
		redir, streams, err := ioredirect.Open(layout.StdoutPath(), layout.StderrPath())
		if err != nil {
			return fmt.Errorf("recorder: %w", err)
		}
		defer redir.Close()
		t, err = s.ctrl.SpawnIO(cfg.Executable, cfg.Argv, cfg.Envp, streams.Stdin, streams.Stdout, streams.Stderr)
		if err != nil {
			return fmt.Errorf("recorder: %w", err)
		}
	} else {
		t, err = s.ctrl.Spawn(cfg.Executable, cfg.Argv, cfg.Envp)
		if err != nil {
			return fmt.Errorf("recorder: %w", err)
		}
	}
	s.rsched.Register(t.Logical)

	if err := s.emit(&trace.Record{
		Kind: trace.KindInit,
		Argv: fullArgv,
		Envp: cfg.Envp,
	}, t); err != nil {
		return err
	}

	if err := s.ctrl.ContToBranchBudget(t, cfg.SliceBranches); err != nil {
		return fmt.Errorf("recorder: initial resume: %w", err)
	}

	for !s.rsched.Empty() {
		ev, err := s.ctrl.Wait()
		if err != nil {
			return fmt.Errorf("recorder: wait: %w", err)
		}
		if err := s.handle(ev); err != nil {
			return err
		}
	}

	return s.close()
}

func (s *Session) handle(ev tracee.Event) error {
	switch ev.Kind {
	case tracee.EventSyscall:
		return s.handleSyscall(ev)
	case tracee.EventSignal:
		return s.handleSignal(ev)
	case tracee.EventClone:
		return s.handleClone(ev)
	case tracee.EventBranchBudget:
		return s.handleBranchBudget(ev)
	case tracee.EventExited:
		return s.handleExit(ev)
	default:
		return fmt.Errorf("recorder: unknown event kind %d", ev.Kind)
	}
}

func (s *Session) handleSyscall(ev tracee.Event) error {
	t := ev.Tracee
	regs, err := s.ctrl.ReadRegs(t)
	if err != nil {
		return fmt.Errorf("recorder: %w", err)
	}

	if ev.SyscallEntry {
		entry := &trace.Record{
			Kind:        trace.KindSyscallEntry,
			SyscallNo:   tracee.Syscall(regs),
			SyscallArgs: tracee.Args(regs),
		}
		if err := s.emit(entry, t); err != nil {
			return err
		}
	} else {
		exit := &trace.Record{
			Kind:          trace.KindSyscallExit,
			SyscallResult: tracee.Return(regs),
		}
		policy := s.table.Lookup(tracee.Syscall(regs))
		if policy.Policy == synctab.BufferWriting {
			deltas, err := s.captureBuffers(t, regs, policy)
			if err != nil {
				return fmt.Errorf("recorder: capture buffers: %w", err)
			}
			exit.MemoryDeltas = deltas
		}
		if err := s.emit(exit, t); err != nil {
			return err
		}
		if err := s.maybeDumpMemory(t); err != nil {
			return err
		}
	}

	return s.ctrl.ContToBranchBudget(t, s.cfg.SliceBranches)
}

// captureBuffers reads every output buffer policy.Buffers names out of t's
// memory at syscall exit, per spec §4.6's BufferWriting policy.
func (s *Session) captureBuffers(t *tracee.Tracee, regs unix.PtraceRegs, policy synctab.Entry) ([]trace.MemoryDelta, error) {
	deltas := make([]trace.MemoryDelta, 0, len(policy.Buffers))
	for _, b := range policy.Buffers {
		if b.IOVec {
			iovDeltas, err := s.captureIOVec(t, regs, b)
			if err != nil {
				return nil, err
			}
			deltas = append(deltas, iovDeltas...)
			continue
		}

		addr := tracee.Arg(regs, b.AddrArgIndex)
		if addr == 0 {
			continue
		}

		var length int
		switch {
		case b.LenFromResult:
			ret := tracee.Return(regs)
			if ret < 0 {
				continue
			}
			length = int(ret)
		case b.LenArgIndex >= 0:
			length = int(tracee.Arg(regs, b.LenArgIndex))
		default:
			length = b.FixedLen
		}
		if length <= 0 {
			continue
		}

		buf := make([]byte, length)
		n, err := s.ctrl.ReadMem(t, addr, buf)
		if err != nil {
			return nil, err
		}
		deltas = append(deltas, trace.MemoryDelta{Addr: addr, Data: buf[:n]})
	}
	return deltas, nil
}

// iovecSize is sizeof(struct iovec) -- a pointer and a size_t, both 8 bytes
// wide on every architecture this package supports.
const iovecSize = 16

// captureIOVec reads b's `struct iovec *` array out of t's memory and
// captures each segment it points at, in order, clipped to the syscall's
// total return value (readv(2) fills iovecs in array order up to that
// total, not necessarily to each segment's own length).
func (s *Session) captureIOVec(t *tracee.Tracee, regs unix.PtraceRegs, b synctab.BufferArg) ([]trace.MemoryDelta, error) {
	base := tracee.Arg(regs, b.AddrArgIndex)
	count := tracee.Arg(regs, b.IOVecCountArgIndex)
	if base == 0 || count == 0 {
		return nil, nil
	}

	remaining := tracee.Return(regs)
	if remaining <= 0 {
		return nil, nil
	}

	raw := make([]byte, int(count)*iovecSize)
	if _, err := s.ctrl.ReadMem(t, base, raw); err != nil {
		return nil, fmt.Errorf("read iovec array at %#x: %w", base, err)
	}

	deltas := make([]trace.MemoryDelta, 0, count)
	for i := uint64(0); i < count && remaining > 0; i++ {
		off := int(i) * iovecSize
		iovBase := binary.LittleEndian.Uint64(raw[off:])
		iovLen := binary.LittleEndian.Uint64(raw[off+8:])
		if iovBase == 0 || iovLen == 0 {
			continue
		}

		n := int64(iovLen)
		if n > remaining {
			n = remaining
		}
		buf := make([]byte, n)
		read, err := s.ctrl.ReadMem(t, iovBase, buf)
		if err != nil {
			return nil, fmt.Errorf("read iovec segment %d at %#x: %w", i, iovBase, err)
		}
		deltas = append(deltas, trace.MemoryDelta{Addr: iovBase, Data: buf[:read]})
		remaining -= n
	}
	return deltas, nil
}

func (s *Session) handleSignal(ev tracee.Event) error {
	t := ev.Tracee
	branches, err := s.ctrl.RetiredBranches(t)
	if err != nil {
		return fmt.Errorf("recorder: %w", err)
	}

	rec := &trace.Record{
		Kind:              trace.KindSignal,
		Signo:             int32(ev.Signal),
		DeliveredAtBranch: branches,
	}
	if err := s.emit(rec, t); err != nil {
		return err
	}

	// Forward the signal to the tracee on resume, matching the kernel's
	// intent (spec §4.6): the recorder neither suppresses nor alters it.
	return s.ctrl.ContToBranchBudgetWithSignal(t, s.cfg.SliceBranches, ev.Signal)
}

func (s *Session) handleClone(ev tracee.Event) error {
	parent := ev.Tracee
	childLogical := s.ctrl.AllocateLogical()
	child := s.ctrl.AdoptKnownLogical(ev.NewChildPid, childLogical)
	s.rsched.Register(child.Logical)

	if err := s.emit(&trace.Record{Kind: trace.KindClone, NewLogical: child.Logical}, parent); err != nil {
		return err
	}

	// Give the child its first quantum immediately: see the package doc
	// comment on why this is granted out of round-robin order.
	if err := s.ctrl.ContToBranchBudget(child, s.cfg.SliceBranches); err != nil {
		return fmt.Errorf("recorder: resume new child: %w", err)
	}
	return s.ctrl.ContToBranchBudget(parent, s.cfg.SliceBranches)
}

func (s *Session) handleBranchBudget(ev tracee.Event) error {
	t := ev.Tracee
	if err := s.emit(&trace.Record{Kind: trace.KindSched}, t); err != nil {
		return err
	}
	s.rsched.Requeue(t.Logical)

	next, ok := s.rsched.PickNext()
	if !ok {
		return nil
	}
	nt, ok := s.ctrl.ByLogical(next)
	if !ok {
		return nil
	}
	return s.ctrl.ContToBranchBudget(nt, s.cfg.SliceBranches)
}

func (s *Session) handleExit(ev tracee.Event) error {
	t := ev.Tracee
	status := int32(ev.ExitStatus)
	if ev.Signaled {
		status = -int32(ev.ExitSignal)
	}
	if err := s.emit(&trace.Record{Kind: trace.KindExit, ExitStatus: status}, t); err != nil {
		return err
	}
	s.rsched.Unregister(t.Logical)
	return nil
}

func (s *Session) maybeDumpMemory(t *tracee.Tracee) error {
	if s.cfg.DumpMemoryAt == 0 || s.seq != s.cfg.DumpMemoryAt {
		return nil
	}
	return memdump.Dump(t.Pid, s.layout.MemDumpPath(int(s.seq)))
}

// emit assigns the next global sequence number, fills in the retired-branch
// delta, appends the record, and updates the SQLite index.
func (s *Session) emit(r *trace.Record, t *tracee.Tracee) error {
	r.Seq = s.seq
	r.Logical = t.Logical

	if r.Kind != trace.KindInit {
		branches, err := s.ctrl.RetiredBranches(t)
		if err != nil {
			return fmt.Errorf("recorder: read branch count: %w", err)
		}
		r.RetiredBranches = branches
	}
	if r.Kind != trace.KindExit {
		if regs, err := s.ctrl.ReadRegs(t); err == nil {
			r.Regs = encodeRegs(regs)
		}
	}

	if s.cfg.Logger != nil {
		s.cfg.Logger.LogRecord(r, s.table)
	}

	offset := s.writer.Offset()
	if err := s.writer.Append(r); err != nil {
		return fmt.Errorf("recorder: append record: %w", err)
	}
	if err := s.index.IndexRecord(r, offset); err != nil {
		return fmt.Errorf("recorder: %w", err)
	}

	s.eventCount[t.Logical]++
	s.seq++
	return nil
}

// close writes the per-tid sub-index and patches the header to point at it.
// Each entry carries the tid's first offset and event count; LastOffset is
// left zero.
func (s *Session) close() error {
	entries := make([]trace.TidIndexEntry, 0, len(s.eventCount))
	for ltid, count := range s.eventCount {
		first, err := s.index.FirstOffset(ltid)
		if err != nil {
			return fmt.Errorf("recorder: %w", err)
		}
		entries = append(entries, trace.TidIndexEntry{
			Logical:    ltid,
			FirstOffset: uint64(first),
			EventCount:  count,
		})
	}

	h, err := s.writer.WriteIndex(s.header, entries)
	if err != nil {
		return fmt.Errorf("recorder: %w", err)
	}
	return s.writer.PatchHeader(h)
}

// encodeRegs serializes a register snapshot into the trace's fixed-width,
// arch-opaque byte slot. unix.PtraceRegs is a plain struct of fixed-width
// integer fields on every supported GOARCH, so a generic binary.Write
// suffices without per-arch marshaling code; amd64's smaller snapshot is
// zero-padded to RegsSize, matching the teacher's regs_arm64.go/regs_amd64.go
// split between arch-specific field access and arch-neutral storage.
func encodeRegs(regs unix.PtraceRegs) [trace.RegsSize]byte {
	var out [trace.RegsSize]byte
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, regs); err != nil {
		return out
	}
	copy(out[:], buf.Bytes())
	return out
}

func hostArchTag() trace.ArchTag {
	switch runtime.GOARCH {
	case "arm64":
		return trace.ArchARM64
	default:
		return trace.ArchAMD64
	}
}
