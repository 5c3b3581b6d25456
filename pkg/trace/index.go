package trace

import (
	"encoding/binary"
	"fmt"

	"retrace/pkg/tracee"
)

// TidIndexEntry locates, for one logical tid, the byte offset of its first
// and last event record in the events file. Spec §4.3 requires the header
// to carry "pointers to per-tid sub-indices written at session close";
// this is the minimal such structure, sufficient to seek a replay directly
// to a tid's first event without a linear scan.
type TidIndexEntry struct {
	Logical     tracee.LogicalTID
	FirstOffset uint64
	LastOffset  uint64
	EventCount  uint64
}

// EncodeIndex serializes entries for appending after the last event record.
func EncodeIndex(entries []TidIndexEntry) []byte {
	buf := appendU32(nil, uint32(len(entries)))
	for _, e := range entries {
		buf = appendU32(buf, uint32(e.Logical))
		buf = appendU64(buf, e.FirstOffset)
		buf = appendU64(buf, e.LastOffset)
		buf = appendU64(buf, e.EventCount)
	}
	return buf
}

// DecodeIndex parses the sub-index written by EncodeIndex.
func DecodeIndex(buf []byte) ([]TidIndexEntry, error) {
	if len(buf) < 4 {
		return nil, fmt.Errorf("%w: index count", ErrTruncated)
	}
	n := binary.LittleEndian.Uint32(buf)
	o := 4
	out := make([]TidIndexEntry, n)
	for i := uint32(0); i < n; i++ {
		if o+24 > len(buf) {
			return nil, fmt.Errorf("%w: index entry %d", ErrTruncated, i)
		}
		out[i] = TidIndexEntry{
			Logical:     tracee.LogicalTID(binary.LittleEndian.Uint32(buf[o:])),
			FirstOffset: binary.LittleEndian.Uint64(buf[o+4:]),
			LastOffset:  binary.LittleEndian.Uint64(buf[o+12:]),
			EventCount:  binary.LittleEndian.Uint64(buf[o+20:]),
		}
		o += 24
	}
	return out, nil
}

// WriteIndex appends entries to w's underlying file and patches h's
// IndexOffset/IndexLength to point at them. Call this once, at session
// close, after the last Append.
func (w *Writer) WriteIndex(h Header, entries []TidIndexEntry) (Header, error) {
	buf := EncodeIndex(entries)
	n, err := w.f.WriteAt(buf, w.offset)
	if err != nil {
		return h, fmt.Errorf("trace: write index: %w", err)
	}
	h.IndexOffset = uint64(w.offset)
	h.IndexLength = uint64(n)
	w.offset += int64(n)
	return h, nil
}

// ReadIndex reads the sub-index located by r's header, if one was written
// (IndexLength == 0 means the session never closed cleanly and no index is
// available; callers should fall back to a linear scan).
func (r *Reader) ReadIndex() ([]TidIndexEntry, error) {
	if r.Header.IndexLength == 0 {
		return nil, nil
	}
	buf := make([]byte, r.Header.IndexLength)
	if _, err := r.f.ReadAt(buf, int64(r.Header.IndexOffset)); err != nil {
		return nil, fmt.Errorf("trace: read index: %w", err)
	}
	return DecodeIndex(buf)
}
