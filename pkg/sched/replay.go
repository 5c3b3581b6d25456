package sched

import (
	"retrace/pkg/trace"
	"retrace/pkg/tracee"
)

// ReplayScheduler re-derives scheduling purely from the trace (spec §4.5):
// it returns the logical tid of the next event in the global stream,
// reproducing exactly the tid sequence the record scheduler produced.
type ReplayScheduler struct {
	r *trace.Reader
}

// NewReplayScheduler wraps a trace reader.
func NewReplayScheduler(r *trace.Reader) *ReplayScheduler {
	return &ReplayScheduler{r: r}
}

// PickNext reads the next record from the trace, including the logical tid
// it belongs to (record.Logical). Returns io.EOF once the stream
// (truncated tail dropped by OpenReader) is exhausted.
func (s *ReplayScheduler) PickNext() (*trace.Record, error) {
	return s.r.Next()
}
