// Package evtlog renders trace events as human-readable session
// commentary alongside the binary trace, generalizing the teacher's
// tracer.Logger (StreamLogger/FileLogger, entry/exit syscall formatting)
// from "log syscalls as they're traced" to "log any recorder or replayer
// event".
package evtlog

import (
	"fmt"
	"io"
	"os"

	"retrace/pkg/synctab"
	"retrace/pkg/trace"
)

// Logger renders trace records for human consumption.
type Logger interface {
	LogRecord(r *trace.Record, table synctab.Table)
}

// StreamLogger writes to an io.Writer, one line per event.
type StreamLogger struct {
	Out io.Writer
}

// NewStreamLogger creates a logger writing to out.
func NewStreamLogger(out io.Writer) *StreamLogger {
	return &StreamLogger{Out: out}
}

// LogRecord renders one record.
func (l *StreamLogger) LogRecord(r *trace.Record, table synctab.Table) {
	switch r.Kind {
	case trace.KindSyscallEntry:
		name := table.Lookup(r.SyscallNo).Name
		if name == "" {
			name = fmt.Sprintf("sys_%d", r.SyscallNo)
		}
		fmt.Fprintf(l.Out, "[%3d] tid=%-4d -> %s(%#x, %#x, %#x, %#x, %#x, %#x)\n",
			r.Seq, r.Logical, name,
			r.SyscallArgs[0], r.SyscallArgs[1], r.SyscallArgs[2],
			r.SyscallArgs[3], r.SyscallArgs[4], r.SyscallArgs[5])
	case trace.KindSyscallExit:
		fmt.Fprintf(l.Out, "[%3d] tid=%-4d <- = %d (deltas=%d)\n",
			r.Seq, r.Logical, r.SyscallResult, len(r.MemoryDeltas))
	case trace.KindSignal:
		fmt.Fprintf(l.Out, "[%3d] tid=%-4d signal %d at branch %d\n",
			r.Seq, r.Logical, r.Signo, r.DeliveredAtBranch)
	case trace.KindClone:
		fmt.Fprintf(l.Out, "[%3d] tid=%-4d clone -> tid=%d flags=%#x\n",
			r.Seq, r.Logical, r.NewLogical, r.CloneFlags)
	case trace.KindSched:
		fmt.Fprintf(l.Out, "[%3d] tid=%-4d sched boundary (branches=%d)\n",
			r.Seq, r.Logical, r.RetiredBranches)
	case trace.KindExit:
		fmt.Fprintf(l.Out, "[%3d] tid=%-4d exit status=%d\n", r.Seq, r.Logical, r.ExitStatus)
	case trace.KindInit:
		fmt.Fprintf(l.Out, "[%3d] tid=%-4d init argv=%v\n", r.Seq, r.Logical, r.Argv)
	}
}

// FileLogger writes to a file, for use with the --log flag.
type FileLogger struct {
	*StreamLogger
	file *os.File
}

// NewFileLogger opens (creating/appending) path for logging.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("evtlog: open %s: %w", path, err)
	}
	return &FileLogger{StreamLogger: NewStreamLogger(f), file: f}, nil
}

// Close closes the underlying file.
func (l *FileLogger) Close() error {
	return l.file.Close()
}
