//go:build linux

package hpc

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// unsafeSizeofPerfEventAttr is the wire size of unix.PerfEventAttr the
// kernel expects in the Size field of perf_event_open's attr argument.
const unsafeSizeofPerfEventAttr = unsafe.Sizeof(unix.PerfEventAttr{})

// setOwner directs SIGIO-class perf_event signals at the thread that owns
// tid, using F_SETOWN_EX so the signal targets a specific thread rather
// than the whole thread group.
func setOwner(fd, tid int) error {
	type fOwnerEx struct {
		Type int32
		PID  int32
	}
	const fSetOwnEx = 0xf
	const fOwnerTid = 0

	v := fOwnerEx{Type: fOwnerTid, PID: int32(tid)}
	_, _, errno := unix.Syscall(unix.SYS_FCNTL, uintptr(fd), uintptr(fSetOwnEx), uintptr(unsafe.Pointer(&v)))
	if errno != 0 {
		return errno
	}
	return nil
}

// setSignal configures the perf_event fd to deliver sig on overflow,
// via fcntl(F_SETSIG), and arms async notification via fcntl(F_SETFL, O_ASYNC).
func setSignal(fd, sig int) error {
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETSIG, sig); err != nil {
		return err
	}
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
	if err != nil {
		return err
	}
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETFL, flags|unix.O_ASYNC); err != nil {
		return err
	}
	return nil
}

// ioctlPeriod sets the perf_event's sample period (the overflow count) via
// PERF_EVENT_IOC_PERIOD, which takes a pointer to a u64 rather than an int
// and so isn't expressible with unix.IoctlSetInt.
func ioctlPeriod(fd int, period uint64) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(unix.PERF_EVENT_IOC_PERIOD), uintptr(unsafe.Pointer(&period)))
	if errno != 0 {
		return errno
	}
	return nil
}
