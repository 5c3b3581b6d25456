// Package synctab is the syscall policy table of spec §4.6/§9: for every
// syscall a target program may issue, whether the recorder needs to
// capture memory effects on exit, and whether the replayer can safely let
// the kernel re-execute it or must skip the kernel and synthesize the
// recorded result. Expressed as data (one row per syscall number, per
// architecture), not as a switch buried in engine code, so it can be
// audited and tested exhaustively (§9).
package synctab

// Policy classifies a syscall for record/replay purposes (spec §4.6).
type Policy int

const (
	// Transparent syscalls have no memory effects to capture; the
	// recorder stores only the result register, and the replayer
	// synthesizes that result without involving the kernel.
	Transparent Policy = iota
	// BufferWriting syscalls return data through one or more output
	// buffers named by specific argument registers; the recorder
	// captures those buffers on exit, and the replayer skips the kernel
	// and writes the recorded bytes back.
	BufferWriting
	// ReExecute syscalls affect kernel-internal state that will
	// re-manifest identically on replay (e.g. brk, certain mmaps); the
	// replayer lets the tracee execute them natively instead of
	// synthesizing a result.
	ReExecute
)

func (p Policy) String() string {
	switch p {
	case Transparent:
		return "transparent"
	case BufferWriting:
		return "buffer-writing"
	case ReExecute:
		return "re-execute"
	default:
		return "unknown"
	}
}

// BufferArg describes one output buffer of a BufferWriting syscall: the
// argument register index holding the buffer's address, and the argument
// register index (or a fixed length) holding its size.
type BufferArg struct {
	AddrArgIndex int
	// LenArgIndex, if >= 0, names the argument register holding the
	// buffer's length. If -1, FixedLen is used instead (structs of a
	// known, fixed size, e.g. `struct stat`).
	LenArgIndex int
	FixedLen    int
	// LenFromResult, if true, means the syscall's return value itself is
	// the number of bytes written into the buffer (e.g. read(2)).
	LenFromResult bool
	// IOVec, if true, means AddrArgIndex names a `struct iovec *` rather
	// than a flat buffer, and IOVecCountArgIndex names the argument
	// register holding the vector length (e.g. readv(2)'s iovcnt). The
	// recorder walks the vector itself and captures each segment, up to
	// the syscall's total return value.
	IOVec              bool
	IOVecCountArgIndex int
}

// Entry is one syscall's policy table row.
type Entry struct {
	Name    string
	Policy  Policy
	Buffers []BufferArg
}

// Table maps syscall number to policy entry for one architecture.
type Table map[uint64]Entry

// Lookup returns t's entry for nr, defaulting to Transparent with no
// buffers for syscalls the table doesn't name explicitly -- an
// unrecognized syscall is assumed to have no memory side effects worth
// capturing, which is safe for replay (the kernel call is simply skipped
// and only the return register is forced) even though it is imprecise for
// genuinely unknown buffer-writing syscalls. New syscalls encountered in
// practice should be added as explicit rows rather than relying on this
// fallback.
func (t Table) Lookup(nr uint64) Entry {
	if e, ok := t[nr]; ok {
		return e
	}
	return Entry{Policy: Transparent}
}
