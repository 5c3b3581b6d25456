// Package prereq validates the host environment before a recording starts,
// grounded on original_source/main.c's check_prerequisites: ASLR must be
// disabled (/proc/sys/kernel/randomize_va_space) and ptrace must be
// unrestricted for non-descendant attach (/proc/sys/kernel/yama/ptrace_scope),
// or a replay can't reproduce the addresses and syscalls the recorder saw.
package prereq

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// ErrASLREnabled means /proc/sys/kernel/randomize_va_space is nonzero.
var ErrASLREnabled = errors.New("prereq: ASLR is not disabled")

// ErrPtraceRestricted means yama/ptrace_scope forbids the attach this tool
// needs.
var ErrPtraceRestricted = errors.New("prereq: ptrace_scope restricts attaching")

// Check runs every environment check and returns the first failure, wrapped
// with the remediation the corresponding /proc file expects.
func Check() error {
	if err := checkASLR(); err != nil {
		return err
	}
	return checkPtraceScope()
}

func checkASLR() error {
	v, err := readProcInt("/proc/sys/kernel/randomize_va_space")
	if err != nil {
		return fmt.Errorf("prereq: read randomize_va_space: %w", err)
	}
	if v != 0 {
		return fmt.Errorf("%w (randomize_va_space=%d; run `echo 0 | sudo tee /proc/sys/kernel/randomize_va_space`)", ErrASLREnabled, v)
	}
	return nil
}

func checkPtraceScope() error {
	v, err := readProcInt("/proc/sys/kernel/yama/ptrace_scope")
	if err != nil {
		// Yama may not be built into the running kernel at all, in which
		// case there is no restriction to check.
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("prereq: read ptrace_scope: %w", err)
	}
	if v != 0 {
		return fmt.Errorf("%w (ptrace_scope=%d; run `echo 0 | sudo tee /proc/sys/kernel/yama/ptrace_scope`)", ErrPtraceRestricted, v)
	}
	return nil
}

func readProcInt(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(raw)))
}

// CheckExecutable verifies exe exists and is executable by this user,
// equivalent to original_source/main.c's access(__executable, X_OK) gate
// before a recording is allowed to fork.
func CheckExecutable(exe string) error {
	path, err := exec.LookPath(exe)
	if err != nil {
		return fmt.Errorf("prereq: %s does not exist or is not executable: %w", exe, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("prereq: stat %s: %w", path, err)
	}
	if info.Mode()&0o111 == 0 {
		return fmt.Errorf("prereq: %s is not executable", path)
	}
	return nil
}
