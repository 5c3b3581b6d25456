package trace

import (
	"fmt"
	"os"
)

// Writer appends records to a trace's events file. It is the sole writer
// for the lifetime of a recording session (spec §5's "exclusively owned by
// the recorder writer").
type Writer struct {
	f      *os.File
	offset int64
	nextSeq uint64
}

// CreateWriter creates (or truncates) path and writes h as its header.
func CreateWriter(path string, h Header) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("trace: create %s: %w", path, err)
	}
	hdr := EncodeHeader(h)
	if _, err := f.Write(hdr); err != nil {
		f.Close()
		return nil, fmt.Errorf("trace: write header %s: %w", path, err)
	}
	return &Writer{f: f, offset: int64(len(hdr))}, nil
}

// Append writes r to the trace. The record is assembled into a scratch
// buffer (Record.Encode) and written in a single WriteAt call. A crash during
// that call can still leave a partial trailing record on disk; OpenReader
// drops it, so a reader sees either the complete length-prefixed record or
// none of it (spec §4.3).
func (w *Writer) Append(r *Record) error {
	if r.Seq != w.nextSeq {
		return fmt.Errorf("trace: out-of-order append: got seq %d, want %d", r.Seq, w.nextSeq)
	}
	buf := r.Encode()
	n, err := w.f.WriteAt(buf, w.offset)
	if err != nil {
		return fmt.Errorf("trace: append record %d: %w", r.Seq, err)
	}
	if n != len(buf) {
		return fmt.Errorf("trace: append record %d: short write (%d of %d bytes)", r.Seq, n, len(buf))
	}
	w.offset += int64(n)
	w.nextSeq++
	return nil
}

// Offset returns the byte offset the next Append will write at.
func (w *Writer) Offset() int64 {
	return w.offset
}

// Sync flushes buffered writes to stable storage.
func (w *Writer) Sync() error {
	return w.f.Sync()
}

// Close finalizes the writer. The caller is responsible for writing the
// per-tid sub-index and patching the header's IndexOffset/IndexLength
// before closing (see WriteIndex in index.go and PatchHeader below).
func (w *Writer) Close() error {
	return w.f.Close()
}

// PatchHeader overwrites the header in place, used once at session close
// to record the sub-index location.
func (w *Writer) PatchHeader(h Header) error {
	hdr := EncodeHeader(h)
	if _, err := w.f.WriteAt(hdr, 0); err != nil {
		return fmt.Errorf("trace: patch header: %w", err)
	}
	return nil
}
