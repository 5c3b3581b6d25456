package trace

import "errors"

// Trace-format errors (spec §7): fatal at trace open.
var (
	ErrBadMagic   = errors.New("trace: bad magic")
	ErrBadVersion = errors.New("trace: unsupported format version")
	ErrBadArch    = errors.New("trace: architecture tag does not match host")
	ErrTruncated  = errors.New("trace: truncated record")
)
