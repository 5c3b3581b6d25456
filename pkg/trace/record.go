package trace

import (
	"encoding/binary"
	"fmt"

	"retrace/pkg/tracee"
)

// Kind is the closed set of event kinds named in spec §3.
type Kind uint8

const (
	KindInit Kind = iota
	KindSyscallEntry
	KindSyscallExit
	KindSignal
	KindSched
	KindClone
	KindExit
)

func (k Kind) String() string {
	switch k {
	case KindInit:
		return "INIT"
	case KindSyscallEntry:
		return "SYSCALL_ENTRY"
	case KindSyscallExit:
		return "SYSCALL_EXIT"
	case KindSignal:
		return "SIGNAL"
	case KindSched:
		return "SCHED"
	case KindClone:
		return "CLONE"
	case KindExit:
		return "EXIT"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// MemoryDelta is one (address, bytes) region the kernel wrote into tracee
// memory on behalf of a syscall, captured on syscall exit (spec §3).
type MemoryDelta struct {
	Addr uint64
	Data []byte
}

// Record is one entry in the trace. Every record carries a global sequence
// number, a logical tid, a retired-branch delta since the previous event on
// that tid, a full register snapshot at the event boundary, and a
// kind-specific payload (spec §3).
type Record struct {
	Seq             uint64
	Logical         tracee.LogicalTID
	Kind            Kind
	RetiredBranches uint64
	Regs            [RegsSize]byte // raw PtraceRegs bytes, arch-opaque to the codec

	// SYSCALL_ENTRY / SYSCALL_EXIT
	SyscallNo     uint64
	SyscallArgs   [6]uint64
	SyscallResult int64
	Restarted     bool
	MemoryDeltas  []MemoryDelta

	// SIGNAL
	Signo             int32
	SiginfoCode       int32
	DeliveredAtBranch uint64

	// CLONE
	NewLogical tracee.LogicalTID
	CloneFlags uint64

	// EXIT
	ExitStatus int32

	// INIT
	Argv []string
	Envp []string
	Auxv []uint64
}

// RegsSize is the fixed width reserved for a raw register snapshot. It is
// sized for the largest register file among supported architectures
// (arm64's unix.PtraceRegs, 272 bytes); amd64's 216-byte snapshot is
// smaller and zero-padded.
const RegsSize = 272

// Encode serializes r as a length-prefixed record: a uint32 little-endian
// byte length followed by the payload. Writer.Append uses this to satisfy
// the "fully committed or absent" guarantee (spec §4.3): the length prefix
// is written as part of the same scratch buffer as the payload, so a
// partial write always leaves a record reader unable to see a complete
// prefix+payload pair.
func (r *Record) Encode() []byte {
	// Fixed-size prologue first, then variable-length tails.
	var buf []byte
	buf = appendU64(buf, r.Seq)
	buf = appendU32(buf, uint32(r.Logical))
	buf = append(buf, byte(r.Kind))
	buf = appendU64(buf, r.RetiredBranches)
	buf = append(buf, r.Regs[:]...)

	switch r.Kind {
	case KindSyscallEntry:
		buf = appendU64(buf, r.SyscallNo)
		for _, a := range r.SyscallArgs {
			buf = appendU64(buf, a)
		}
	case KindSyscallExit:
		buf = appendI64(buf, r.SyscallResult)
		buf = appendBool(buf, r.Restarted)
		buf = appendU32(buf, uint32(len(r.MemoryDeltas)))
		for _, d := range r.MemoryDeltas {
			buf = appendU64(buf, d.Addr)
			buf = appendU32(buf, uint32(len(d.Data)))
			buf = append(buf, d.Data...)
		}
	case KindSignal:
		buf = appendI32(buf, r.Signo)
		buf = appendI32(buf, r.SiginfoCode)
		buf = appendU64(buf, r.DeliveredAtBranch)
	case KindClone:
		buf = appendU32(buf, uint32(r.NewLogical))
		buf = appendU64(buf, r.CloneFlags)
	case KindExit:
		buf = appendI32(buf, r.ExitStatus)
	case KindInit:
		buf = appendStrings(buf, r.Argv)
		buf = appendStrings(buf, r.Envp)
		buf = appendU32(buf, uint32(len(r.Auxv)))
		for _, v := range r.Auxv {
			buf = appendU64(buf, v)
		}
	}

	length := make([]byte, 4)
	binary.LittleEndian.PutUint32(length, uint32(len(buf)))
	return append(length, buf...)
}

// Decode parses one record payload (without its length prefix, which the
// Reader strips beforehand).
func Decode(buf []byte) (*Record, error) {
	r := &Record{}
	o := 0
	need := func(n int) error {
		if o+n > len(buf) {
			return fmt.Errorf("%w: need %d more bytes at offset %d of %d", ErrTruncated, n, o, len(buf))
		}
		return nil
	}

	if err := need(8); err != nil {
		return nil, err
	}
	r.Seq = binary.LittleEndian.Uint64(buf[o:])
	o += 8
	if err := need(4); err != nil {
		return nil, err
	}
	r.Logical = tracee.LogicalTID(binary.LittleEndian.Uint32(buf[o:]))
	o += 4
	if err := need(1); err != nil {
		return nil, err
	}
	r.Kind = Kind(buf[o])
	o++
	if err := need(8); err != nil {
		return nil, err
	}
	r.RetiredBranches = binary.LittleEndian.Uint64(buf[o:])
	o += 8
	if err := need(RegsSize); err != nil {
		return nil, err
	}
	copy(r.Regs[:], buf[o:o+RegsSize])
	o += RegsSize

	switch r.Kind {
	case KindSyscallEntry:
		if err := need(8); err != nil {
			return nil, err
		}
		r.SyscallNo = binary.LittleEndian.Uint64(buf[o:])
		o += 8
		for i := range r.SyscallArgs {
			if err := need(8); err != nil {
				return nil, err
			}
			r.SyscallArgs[i] = binary.LittleEndian.Uint64(buf[o:])
			o += 8
		}
	case KindSyscallExit:
		if err := need(8); err != nil {
			return nil, err
		}
		r.SyscallResult = int64(binary.LittleEndian.Uint64(buf[o:]))
		o += 8
		if err := need(1); err != nil {
			return nil, err
		}
		r.Restarted = buf[o] != 0
		o++
		if err := need(4); err != nil {
			return nil, err
		}
		n := binary.LittleEndian.Uint32(buf[o:])
		o += 4
		r.MemoryDeltas = make([]MemoryDelta, n)
		for i := uint32(0); i < n; i++ {
			if err := need(8); err != nil {
				return nil, err
			}
			addr := binary.LittleEndian.Uint64(buf[o:])
			o += 8
			if err := need(4); err != nil {
				return nil, err
			}
			dl := binary.LittleEndian.Uint32(buf[o:])
			o += 4
			if err := need(int(dl)); err != nil {
				return nil, err
			}
			data := make([]byte, dl)
			copy(data, buf[o:o+int(dl)])
			o += int(dl)
			r.MemoryDeltas[i] = MemoryDelta{Addr: addr, Data: data}
		}
	case KindSignal:
		if err := need(8); err != nil {
			return nil, err
		}
		r.Signo = int32(binary.LittleEndian.Uint32(buf[o:]))
		o += 4
		r.SiginfoCode = int32(binary.LittleEndian.Uint32(buf[o:]))
		o += 4
		if err := need(8); err != nil {
			return nil, err
		}
		r.DeliveredAtBranch = binary.LittleEndian.Uint64(buf[o:])
		o += 8
	case KindClone:
		if err := need(12); err != nil {
			return nil, err
		}
		r.NewLogical = tracee.LogicalTID(binary.LittleEndian.Uint32(buf[o:]))
		o += 4
		r.CloneFlags = binary.LittleEndian.Uint64(buf[o:])
		o += 8
	case KindExit:
		if err := need(4); err != nil {
			return nil, err
		}
		r.ExitStatus = int32(binary.LittleEndian.Uint32(buf[o:]))
		o += 4
	case KindInit:
		argv, no, err := readStrings(buf, o)
		if err != nil {
			return nil, err
		}
		r.Argv, o = argv, no
		envp, no2, err := readStrings(buf, o)
		if err != nil {
			return nil, err
		}
		r.Envp, o = envp, no2
		if err := need(4); err != nil {
			return nil, err
		}
		n := binary.LittleEndian.Uint32(buf[o:])
		o += 4
		r.Auxv = make([]uint64, n)
		for i := uint32(0); i < n; i++ {
			if err := need(8); err != nil {
				return nil, err
			}
			r.Auxv[i] = binary.LittleEndian.Uint64(buf[o:])
			o += 8
		}
	}

	return r, nil
}

func appendU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func appendU64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func appendI32(buf []byte, v int32) []byte { return appendU32(buf, uint32(v)) }
func appendI64(buf []byte, v int64) []byte { return appendU64(buf, uint64(v)) }

func appendBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 1)
	}
	return append(buf, 0)
}

func appendStrings(buf []byte, ss []string) []byte {
	buf = appendU32(buf, uint32(len(ss)))
	for _, s := range ss {
		buf = appendU32(buf, uint32(len(s)))
		buf = append(buf, s...)
	}
	return buf
}

func readStrings(buf []byte, o int) ([]string, int, error) {
	if o+4 > len(buf) {
		return nil, 0, fmt.Errorf("%w: string list count", ErrTruncated)
	}
	n := binary.LittleEndian.Uint32(buf[o:])
	o += 4
	out := make([]string, n)
	for i := uint32(0); i < n; i++ {
		if o+4 > len(buf) {
			return nil, 0, fmt.Errorf("%w: string %d length", ErrTruncated, i)
		}
		l := binary.LittleEndian.Uint32(buf[o:])
		o += 4
		if o+int(l) > len(buf) {
			return nil, 0, fmt.Errorf("%w: string %d data", ErrTruncated, i)
		}
		out[i] = string(buf[o : o+int(l)])
		o += int(l)
	}
	return out, o, nil
}
