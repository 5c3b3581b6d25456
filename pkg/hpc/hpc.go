// Package hpc drives the hardware performance counters used to align
// record and replay at instruction granularity (spec §4.2). It exposes one
// counter per tracee, bound to the generic PERF_COUNT_HW_BRANCH_INSTRUCTIONS
// event (retired branch instructions), with overflow delivered to the
// supervisor as a signal identifying the offending tracee. That event is not
// restricted to conditional branches: which branch kinds it counts is
// defined by the CPU's perf mapping, not by this package.
package hpc

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// overflowSignal is delivered via F_SETSIG when the counter overflows. SIGIO
// is the default perf_event overflow signal when no custom F_SETSIG value
// is configured; a dedicated realtime signal would also work but SIGIO
// keeps this distinguishable from other realtime-signal usage in the
// tracee without extra bookkeeping.
const overflowSignal = unix.SIGIO

// Counter is a per-tracee retired-branch counter.
type Counter struct {
	tid int
	fd  int
}

// Open creates a counter bound to tid (a thread or process id), counting
// retired branch instructions. Open is fatal-at-session-start per spec
// §4.2: the caller should treat a non-nil error here as a prerequisite
// failure, not a per-tracee recoverable one.
func Open(tid int) (*Counter, error) {
	attr := unix.PerfEventAttr{
		Type:   unix.PERF_TYPE_HARDWARE,
		Size:   uint32(unsafeSizeofPerfEventAttr),
		Config: unix.PERF_COUNT_HW_BRANCH_INSTRUCTIONS,
		Bits:   unix.PerfBitDisabled,
	}

	fd, err := unix.PerfEventOpen(&attr, tid, -1, -1, 0)
	if err != nil {
		return nil, fmt.Errorf("perf_event_open(tid=%d): %w", tid, err)
	}

	if err := unix.IoctlSetInt(fd, unix.PERF_EVENT_IOC_RESET, 0); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("perf_event reset(tid=%d): %w", tid, err)
	}

	if err := setOwner(fd, tid); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("perf_event set owner(tid=%d): %w", tid, err)
	}
	if err := setSignal(fd, int(overflowSignal)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("perf_event set signal(tid=%d): %w", tid, err)
	}

	return &Counter{tid: tid, fd: fd}, nil
}

// Reset zeroes the counter without re-arming overflow.
func (c *Counter) Reset() error {
	if err := unix.IoctlSetInt(c.fd, unix.PERF_EVENT_IOC_RESET, 0); err != nil {
		return fmt.Errorf("perf_event reset(tid=%d): %w", c.tid, err)
	}
	return nil
}

// Read returns the counter's current value.
func (c *Counter) Read() (uint64, error) {
	var buf [8]byte
	n, err := unix.Read(c.fd, buf[:])
	if err != nil {
		return 0, fmt.Errorf("perf_event read(tid=%d): %w", c.tid, err)
	}
	if n != 8 {
		return 0, fmt.Errorf("perf_event read(tid=%d): short read of %d bytes", c.tid, n)
	}
	return leUint64(buf[:]), nil
}

// ArmOverflow resets the counter to zero, sets it to raise overflowSignal
// after exactly n increments, and enables it. Controller.ContToBranchBudget
// calls this immediately before resuming the tracee. The counter is bound to
// the tracee's thread, so it does not advance while that thread is stopped
// (spec §4.1's precision requirement).
func (c *Counter) ArmOverflow(n uint64) error {
	if err := unix.IoctlSetInt(c.fd, unix.PERF_EVENT_IOC_RESET, 0); err != nil {
		return fmt.Errorf("perf_event reset(tid=%d): %w", c.tid, err)
	}
	if n == 0 {
		n = 1
	}
	if err := ioctlPeriod(c.fd, n); err != nil {
		return fmt.Errorf("perf_event set period(tid=%d): %w", c.tid, err)
	}
	if err := unix.IoctlSetInt(c.fd, unix.PERF_EVENT_IOC_REFRESH, 1); err != nil {
		return fmt.Errorf("perf_event refresh(tid=%d): %w", c.tid, err)
	}
	return nil
}

// Close releases the counter's file descriptor.
func (c *Counter) Close() error {
	if c.fd < 0 {
		return nil
	}
	err := unix.Close(c.fd)
	c.fd = -1
	return err
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
