package hpc

import (
	"os"
	"testing"
)

func TestLeUint64(t *testing.T) {
	cases := []struct {
		buf  [8]byte
		want uint64
	}{
		{[8]byte{0, 0, 0, 0, 0, 0, 0, 0}, 0},
		{[8]byte{1, 0, 0, 0, 0, 0, 0, 0}, 1},
		{[8]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, ^uint64(0)},
		{[8]byte{0x2a, 0, 0, 0, 0, 0, 0, 0}, 42},
	}
	for _, c := range cases {
		if got := leUint64(c.buf[:]); got != c.want {
			t.Errorf("leUint64(%v) = %d, want %d", c.buf, got, c.want)
		}
	}
}

// TestCounterLifecycle exercises Open/ArmOverflow/Read/Close against the
// running process's own perf_event counter. It skips rather than fails
// when the host denies unprivileged perf_event_open, which
// perf_event_paranoid commonly does outside a dedicated test environment.
func TestCounterLifecycle(t *testing.T) {
	c, err := Open(os.Getpid())
	if err != nil {
		t.Skipf("perf_event_open unavailable in this environment: %v", err)
	}
	defer c.Close()

	if err := c.ArmOverflow(1_000_000); err != nil {
		t.Fatalf("ArmOverflow: %v", err)
	}
	if _, err := c.Read(); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if err := c.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
}
