// Package sched implements the record and replay schedulers of spec §4.4
// and §4.5: the record scheduler picks which runnable tracee goes next and
// how large a branch-count slice it gets; the replay scheduler simply
// replays the tid order the trace already recorded.
package sched

import (
	"retrace/pkg/tracee"
)

// DefaultSliceBranches is the typical branch-budget slice length named in
// spec §4.4: "on the order of 10,000 retired branches".
const DefaultSliceBranches = 10_000

// RecordScheduler maintains the set of runnable tracees and a round-robin
// cursor over them (spec §4.4).
type RecordScheduler struct {
	order         []tracee.LogicalTID
	cursor        int
	sliceBranches uint64
}

// NewRecordScheduler creates a scheduler with the given branch-budget slice
// length (DefaultSliceBranches if n == 0).
func NewRecordScheduler(sliceBranches uint64) *RecordScheduler {
	if sliceBranches == 0 {
		sliceBranches = DefaultSliceBranches
	}
	return &RecordScheduler{sliceBranches: sliceBranches}
}

// Register adds ltid to the tail of the runnable queue.
func (s *RecordScheduler) Register(ltid tracee.LogicalTID) {
	for _, t := range s.order {
		if t == ltid {
			return
		}
	}
	s.order = append(s.order, ltid)
}

// Unregister removes ltid (on exit).
func (s *RecordScheduler) Unregister(ltid tracee.LogicalTID) {
	for i, t := range s.order {
		if t == ltid {
			s.order = append(s.order[:i], s.order[i+1:]...)
			if s.cursor > i {
				s.cursor--
			}
			if len(s.order) > 0 {
				s.cursor %= len(s.order)
			} else {
				s.cursor = 0
			}
			return
		}
	}
}

// Requeue moves ltid to the tail of the queue, as spec §4.4 requires for a
// tracee that "just blocked" and has since unblocked: it rejoins at the
// back rather than resuming its old position.
func (s *RecordScheduler) Requeue(ltid tracee.LogicalTID) {
	s.Unregister(ltid)
	s.order = append(s.order, ltid)
}

// PickNext returns the next tid to run, in registration order, advancing
// the round-robin cursor. Returns false if no tracee is registered.
func (s *RecordScheduler) PickNext() (tracee.LogicalTID, bool) {
	if len(s.order) == 0 {
		return 0, false
	}
	ltid := s.order[s.cursor%len(s.order)]
	s.cursor = (s.cursor + 1) % len(s.order)
	return ltid, true
}

// CurrentSliceBranches returns the configured branch-budget slice length.
func (s *RecordScheduler) CurrentSliceBranches() uint64 {
	return s.sliceBranches
}

// Empty reports whether there are no runnable tracees left.
func (s *RecordScheduler) Empty() bool {
	return len(s.order) == 0
}
