package sched

import (
	"testing"

	"retrace/pkg/tracee"
)

func TestRecordSchedulerRoundRobin(t *testing.T) {
	s := NewRecordScheduler(0)
	if s.CurrentSliceBranches() != DefaultSliceBranches {
		t.Errorf("CurrentSliceBranches() = %d, want default %d", s.CurrentSliceBranches(), DefaultSliceBranches)
	}

	s.Register(1)
	s.Register(2)
	s.Register(3)

	var order []tracee.LogicalTID
	for i := 0; i < 6; i++ {
		ltid, ok := s.PickNext()
		if !ok {
			t.Fatalf("PickNext returned ok=false with tracees registered")
		}
		order = append(order, ltid)
	}
	want := []tracee.LogicalTID{1, 2, 3, 1, 2, 3}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestRecordSchedulerRegisterIsIdempotent(t *testing.T) {
	s := NewRecordScheduler(0)
	s.Register(1)
	s.Register(1)
	if len(s.order) != 1 {
		t.Fatalf("order = %v, want single entry", s.order)
	}
}

func TestRecordSchedulerUnregister(t *testing.T) {
	s := NewRecordScheduler(0)
	s.Register(1)
	s.Register(2)
	s.Unregister(1)

	ltid, ok := s.PickNext()
	if !ok || ltid != 2 {
		t.Fatalf("PickNext() = %d, %v, want 2, true", ltid, ok)
	}
}

func TestRecordSchedulerEmpty(t *testing.T) {
	s := NewRecordScheduler(0)
	if !s.Empty() {
		t.Fatal("Empty() = false on a fresh scheduler")
	}
	s.Register(1)
	if s.Empty() {
		t.Fatal("Empty() = true after Register")
	}
	s.Unregister(1)
	if !s.Empty() {
		t.Fatal("Empty() = false after removing the last tracee")
	}
	if _, ok := s.PickNext(); ok {
		t.Fatal("PickNext() ok = true with no tracees registered")
	}
}

func TestRecordSchedulerRequeueMovesToTail(t *testing.T) {
	s := NewRecordScheduler(0)
	s.Register(1)
	s.Register(2)
	s.Register(3)

	s.Requeue(1)

	got, _ := s.PickNext()
	if got != 2 {
		t.Fatalf("first pick after requeue = %d, want 2", got)
	}
}
