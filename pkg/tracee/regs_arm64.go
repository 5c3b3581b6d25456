//go:build arm64

package tracee

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Syscall returns the syscall number from a register snapshot taken at
// syscall entry.
func Syscall(regs unix.PtraceRegs) uint64 { return regs.Regs[8] }

// SetSyscall sets the syscall number.
func SetSyscall(regs *unix.PtraceRegs, nr uint64) { regs.Regs[8] = nr }

// Arg returns syscall argument index (0-5).
func Arg(regs unix.PtraceRegs, index int) uint64 {
	if index >= 0 && index < 6 {
		return regs.Regs[index]
	}
	return 0
}

// SetArg sets syscall argument index (0-5).
func SetArg(regs *unix.PtraceRegs, index int, value uint64) {
	if index >= 0 && index < 6 {
		regs.Regs[index] = value
	}
}

// Args returns all 6 syscall arguments (x0-x5).
func Args(regs unix.PtraceRegs) [6]uint64 {
	var args [6]uint64
	copy(args[:], regs.Regs[:6])
	return args
}

// Return reads the syscall return value (only valid at syscall exit).
func Return(regs unix.PtraceRegs) int64 { return int64(regs.Regs[0]) }

// SetReturn sets the syscall return value (only valid at syscall exit).
func SetReturn(regs *unix.PtraceRegs, value int64) { regs.Regs[0] = uint64(value) }

// PC returns the program counter.
func PC(regs unix.PtraceRegs) uint64 { return regs.Pc }

// RegDiff names the first field at which two register snapshots diverge, or
// "" if they are identical.
func RegDiff(a, b unix.PtraceRegs) string {
	for i := 0; i < len(a.Regs); i++ {
		if a.Regs[i] != b.Regs[i] {
			return fmt.Sprintf("x%d", i)
		}
	}
	if a.Sp != b.Sp {
		return "sp"
	}
	if a.Pc != b.Pc {
		return "pc"
	}
	if a.Pstate != b.Pstate {
		return "pstate"
	}
	return ""
}
