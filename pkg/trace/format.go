// Package trace implements the binary, append-only trace format described
// in spec §4.3: a versioned file header followed by a stream of
// length-prefixed event records, little-endian throughout.
package trace

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Magic identifies a retrace trace file.
const Magic uint32 = 0x52545243 // "RTRC"

// FormatVersion is the current on-disk format version.
const FormatVersion uint32 = 1

// ArchTag identifies the host architecture a trace was recorded on. Replay
// on a mismatched tag is a trace-format error at open, not a divergence at
// first event (spec §8 scenario S6).
type ArchTag uint16

const (
	ArchUnknown ArchTag = iota
	ArchAMD64
	ArchARM64
)

func (a ArchTag) String() string {
	switch a {
	case ArchAMD64:
		return "amd64"
	case ArchARM64:
		return "arm64"
	default:
		return "unknown"
	}
}

// Header is the fixed-size file header, stored at byte 0 of the events
// file.
type Header struct {
	Magic         uint32
	FormatVersion uint32
	Arch          ArchTag
	_             uint16 // padding, reserved
	PageSize      uint32
	StartUnixNano int64
	SessionID     uuid.UUID

	// IndexOffset/IndexLength locate the per-tid sub-index written at
	// session close (0/0 if the session never closed cleanly, in which
	// case a reader must rebuild the index by a linear scan).
	IndexOffset uint64
	IndexLength uint64
}

// HeaderSize is the encoded size of Header on disk.
const HeaderSize = 4 + 4 + 2 + 2 + 4 + 8 + 16 + 8 + 8

// EncodeHeader serializes h in little-endian wire format.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	o := 0
	binary.LittleEndian.PutUint32(buf[o:], h.Magic)
	o += 4
	binary.LittleEndian.PutUint32(buf[o:], h.FormatVersion)
	o += 4
	binary.LittleEndian.PutUint16(buf[o:], uint16(h.Arch))
	o += 2
	o += 2 // padding
	binary.LittleEndian.PutUint32(buf[o:], h.PageSize)
	o += 4
	binary.LittleEndian.PutUint64(buf[o:], uint64(h.StartUnixNano))
	o += 8
	sid, _ := h.SessionID.MarshalBinary()
	copy(buf[o:o+16], sid)
	o += 16
	binary.LittleEndian.PutUint64(buf[o:], h.IndexOffset)
	o += 8
	binary.LittleEndian.PutUint64(buf[o:], h.IndexLength)
	return buf
}

// DecodeHeader parses a Header from its on-disk representation.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("trace header: truncated (%d of %d bytes)", len(buf), HeaderSize)
	}
	var h Header
	o := 0
	h.Magic = binary.LittleEndian.Uint32(buf[o:])
	o += 4
	if h.Magic != Magic {
		return Header{}, fmt.Errorf("%w: got %#x, want %#x", ErrBadMagic, h.Magic, Magic)
	}
	h.FormatVersion = binary.LittleEndian.Uint32(buf[o:])
	o += 4
	if h.FormatVersion != FormatVersion {
		return Header{}, fmt.Errorf("%w: got %d, want %d", ErrBadVersion, h.FormatVersion, FormatVersion)
	}
	h.Arch = ArchTag(binary.LittleEndian.Uint16(buf[o:]))
	o += 2
	o += 2
	h.PageSize = binary.LittleEndian.Uint32(buf[o:])
	o += 4
	h.StartUnixNano = int64(binary.LittleEndian.Uint64(buf[o:]))
	o += 8
	if err := h.SessionID.UnmarshalBinary(buf[o : o+16]); err != nil {
		return Header{}, fmt.Errorf("trace header: session id: %w", err)
	}
	o += 16
	h.IndexOffset = binary.LittleEndian.Uint64(buf[o:])
	o += 8
	h.IndexLength = binary.LittleEndian.Uint64(buf[o:])
	return h, nil
}

// NewHeader builds a fresh header for a new recording session.
func NewHeader(arch ArchTag, pageSize int) Header {
	return Header{
		Magic:         Magic,
		FormatVersion: FormatVersion,
		Arch:          arch,
		PageSize:      uint32(pageSize),
		StartUnixNano: time.Now().UnixNano(),
		SessionID:     uuid.New(),
	}
}
