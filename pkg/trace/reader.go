package trace

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Reader streams records positionally from an events file. It is the sole
// reader for the lifetime of a replay session and never writes (spec §5).
type Reader struct {
	f      *os.File
	Header Header
	offset int64
	size   int64
}

// hostArch identifies the architecture this binary was built for, used to
// validate a trace's ArchTag at open (spec §8 scenario S6).
var hostArch = detectHostArch()

// OpenReader opens path, validates its header, and positions the reader at
// the first record. If the file's trailing bytes do not form a complete
// record (a crash during the last Writer.Append), OpenReader truncates its
// view to the last complete record rather than failing (spec §4.3, §8
// scenario S5) -- the file on disk is left untouched; only the in-memory
// read boundary is adjusted, preserving the "replayer never writes"
// invariant.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("trace: open %s: %w", path, err)
	}

	hdrBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(f, hdrBuf); err != nil {
		f.Close()
		return nil, fmt.Errorf("trace: read header %s: %w", path, err)
	}
	h, err := DecodeHeader(hdrBuf)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("trace: %s: %w", path, err)
	}
	if h.Arch != hostArch {
		f.Close()
		return nil, fmt.Errorf("trace: %s: %w (trace=%s host=%s)", path, ErrBadArch, h.Arch, hostArch)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("trace: stat %s: %w", path, err)
	}

	r := &Reader{f: f, Header: h, offset: int64(HeaderSize), size: info.Size()}
	if err := r.scanValidTail(); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// scanValidTail walks the record stream once to find the last complete
// record, so a truncated trailing record (one whose length prefix claims
// more bytes than remain in the file) is silently dropped rather than
// surfacing a read error mid-replay. Only lengths are checked here: a
// record that is complete in length but has corrupted bytes is kept.
func (r *Reader) scanValidTail() error {
	lastGood := r.offset
	off := r.offset
	for off+4 <= r.size {
		lenBuf := make([]byte, 4)
		if _, err := r.f.ReadAt(lenBuf, off); err != nil {
			break
		}
		l := int64(binary.LittleEndian.Uint32(lenBuf))
		if off+4+l > r.size {
			break // trailing partial record, truncate our view here
		}
		off += 4 + l
		lastGood = off
	}
	r.size = lastGood
	return nil
}

// Next reads and decodes the next record, or io.EOF when the stream
// (possibly truncated by scanValidTail) is exhausted.
func (r *Reader) Next() (*Record, error) {
	if r.offset >= r.size {
		return nil, io.EOF
	}
	lenBuf := make([]byte, 4)
	if _, err := r.f.ReadAt(lenBuf, r.offset); err != nil {
		return nil, fmt.Errorf("trace: read length at %d: %w", r.offset, err)
	}
	l := binary.LittleEndian.Uint32(lenBuf)
	payload := make([]byte, l)
	if _, err := r.f.ReadAt(payload, r.offset+4); err != nil {
		return nil, fmt.Errorf("trace: read record at %d: %w", r.offset, err)
	}
	rec, err := Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("trace: decode record at %d: %w", r.offset, err)
	}
	r.offset += 4 + int64(l)
	return rec, nil
}

// Close releases the underlying file. Opening and closing without calling
// Next leaves the file's bytes untouched (spec §8's idempotent trace read
// property): OpenReader only reads, never writes.
func (r *Reader) Close() error {
	return r.f.Close()
}
