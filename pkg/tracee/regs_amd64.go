//go:build amd64

package tracee

import "golang.org/x/sys/unix"

// Syscall returns the syscall number from a register snapshot taken at
// syscall entry.
func Syscall(regs unix.PtraceRegs) uint64 { return regs.Orig_rax }

// SetSyscall sets the syscall number, e.g. to -1 to make the kernel skip
// the syscall entirely (§4.7's "skip the kernel" dispatch path).
func SetSyscall(regs *unix.PtraceRegs, nr uint64) { regs.Orig_rax = nr }

// Arg returns syscall argument index (0-5) from a register snapshot.
func Arg(regs unix.PtraceRegs, index int) uint64 {
	switch index {
	case 0:
		return regs.Rdi
	case 1:
		return regs.Rsi
	case 2:
		return regs.Rdx
	case 3:
		return regs.R10
	case 4:
		return regs.R8
	case 5:
		return regs.R9
	default:
		return 0
	}
}

// SetArg sets syscall argument index (0-5).
func SetArg(regs *unix.PtraceRegs, index int, value uint64) {
	switch index {
	case 0:
		regs.Rdi = value
	case 1:
		regs.Rsi = value
	case 2:
		regs.Rdx = value
	case 3:
		regs.R10 = value
	case 4:
		regs.R8 = value
	case 5:
		regs.R9 = value
	}
}

// Args returns all 6 syscall arguments.
func Args(regs unix.PtraceRegs) [6]uint64 {
	return [6]uint64{regs.Rdi, regs.Rsi, regs.Rdx, regs.R10, regs.R8, regs.R9}
}

// Return reads the syscall return value (only valid at syscall exit).
func Return(regs unix.PtraceRegs) int64 { return int64(regs.Rax) }

// SetReturn sets the syscall return value (only valid at syscall exit).
func SetReturn(regs *unix.PtraceRegs, value int64) { regs.Rax = uint64(value) }

// PC returns the program counter.
func PC(regs unix.PtraceRegs) uint64 { return regs.Rip }

// RegDiff names the first field at which two register snapshots diverge, or
// "" if they are identical. Used by the replayer's rendezvous check (§4.7,
// §7: "the first mismatching register").
func RegDiff(a, b unix.PtraceRegs) string {
	type field struct {
		name    string
		av, bv  uint64
	}
	fields := []field{
		{"rip", a.Rip, b.Rip},
		{"rsp", a.Rsp, b.Rsp},
		{"rbp", a.Rbp, b.Rbp},
		{"rax", a.Rax, b.Rax},
		{"rbx", a.Rbx, b.Rbx},
		{"rcx", a.Rcx, b.Rcx},
		{"rdx", a.Rdx, b.Rdx},
		{"rsi", a.Rsi, b.Rsi},
		{"rdi", a.Rdi, b.Rdi},
		{"r8", a.R8, b.R8},
		{"r9", a.R9, b.R9},
		{"r10", a.R10, b.R10},
		{"r11", a.R11, b.R11},
		{"r12", a.R12, b.R12},
		{"r13", a.R13, b.R13},
		{"r14", a.R14, b.R14},
		{"r15", a.R15, b.R15},
		{"eflags", a.Eflags, b.Eflags},
	}
	for _, f := range fields {
		if f.av != f.bv {
			return f.name
		}
	}
	return ""
}
