package synctab

// ARM64 is the syscall policy table for the AArch64 Linux ABI. ARM64 uses
// the "generic" syscall numbering (include/uapi/asm-generic/unistd.h),
// which differs substantially from x86-64's historical table -- there is
// no standalone open/stat/access/fork/etc, only the *at and *at64 forms
// plus clone. Covers the same end-to-end-scenario surface as AMD64.
var ARM64 = Table{
	17: {Name: "getcwd", Policy: BufferWriting, Buffers: []BufferArg{
		{AddrArgIndex: 0, LenArgIndex: -1, LenFromResult: true},
	}},
	23: {Name: "dup", Policy: Transparent},
	24: {Name: "dup3", Policy: Transparent},
	25: {Name: "fcntl", Policy: Transparent},
	29: {Name: "ioctl", Policy: Transparent},
	34: {Name: "mkdirat", Policy: Transparent},
	35: {Name: "unlinkat", Policy: Transparent},
	38: {Name: "renameat", Policy: Transparent},
	48: {Name: "faccessat", Policy: Transparent},
	49: {Name: "chdir", Policy: Transparent},
	56: {Name: "openat", Policy: Transparent},
	57: {Name: "close", Policy: Transparent},
	59: {Name: "pipe2", Policy: BufferWriting, Buffers: []BufferArg{
		{AddrArgIndex: 0, LenArgIndex: -1, FixedLen: 8},
	}},
	61: {Name: "getdents64", Policy: BufferWriting, Buffers: []BufferArg{
		{AddrArgIndex: 1, LenArgIndex: -1, LenFromResult: true},
	}},
	62: {Name: "lseek", Policy: Transparent},
	63: {Name: "read", Policy: BufferWriting, Buffers: []BufferArg{
		{AddrArgIndex: 1, LenArgIndex: -1, LenFromResult: true},
	}},
	64: {Name: "write", Policy: Transparent},
	65: {Name: "readv", Policy: BufferWriting, Buffers: []BufferArg{
		{AddrArgIndex: 1, IOVec: true, IOVecCountArgIndex: 2},
	}},
	66: {Name: "writev", Policy: Transparent},
	67: {Name: "pread64", Policy: BufferWriting, Buffers: []BufferArg{
		{AddrArgIndex: 1, LenArgIndex: -1, LenFromResult: true},
	}},
	72: {Name: "pselect6", Policy: Transparent},
	78: {Name: "readlinkat", Policy: BufferWriting, Buffers: []BufferArg{
		{AddrArgIndex: 2, LenArgIndex: -1, LenFromResult: true},
	}},
	79: {Name: "newfstatat", Policy: BufferWriting, Buffers: []BufferArg{
		{AddrArgIndex: 2, LenArgIndex: -1, FixedLen: 128},
	}},
	80:  {Name: "fstat", Policy: BufferWriting, Buffers: []BufferArg{
		{AddrArgIndex: 1, LenArgIndex: -1, FixedLen: 128},
	}},
	93:  {Name: "exit", Policy: Transparent},
	94:  {Name: "exit_group", Policy: Transparent},
	96:  {Name: "set_tid_address", Policy: ReExecute},
	98:  {Name: "futex", Policy: Transparent},
	99:  {Name: "set_robust_list", Policy: ReExecute},
	113: {Name: "clock_gettime", Policy: BufferWriting, Buffers: []BufferArg{
		{AddrArgIndex: 1, LenArgIndex: -1, FixedLen: 16},
	}},
	129: {Name: "kill", Policy: Transparent},
	134: {Name: "rt_sigaction", Policy: Transparent},
	135: {Name: "rt_sigprocmask", Policy: BufferWriting, Buffers: []BufferArg{
		{AddrArgIndex: 2, LenArgIndex: 3},
	}},
	138: {Name: "rt_sigqueueinfo", Policy: Transparent},
	155: {Name: "getpgid", Policy: Transparent},
	160: {Name: "uname", Policy: BufferWriting, Buffers: []BufferArg{
		{AddrArgIndex: 0, LenArgIndex: -1, FixedLen: 390},
	}},
	169: {Name: "gettimeofday", Policy: BufferWriting, Buffers: []BufferArg{
		{AddrArgIndex: 0, LenArgIndex: -1, FixedLen: 16},
	}},
	172: {Name: "getpid", Policy: Transparent},
	174: {Name: "getuid", Policy: Transparent},
	178: {Name: "gettid", Policy: Transparent},
	214: {Name: "brk", Policy: ReExecute},
	215: {Name: "munmap", Policy: ReExecute},
	220: {Name: "clone", Policy: ReExecute},
	221: {Name: "execve", Policy: ReExecute},
	222: {Name: "mmap", Policy: ReExecute},
	226: {Name: "mprotect", Policy: ReExecute},
	260: {Name: "wait4", Policy: BufferWriting, Buffers: []BufferArg{
		{AddrArgIndex: 1, LenArgIndex: -1, FixedLen: 4},
	}},
	278: {Name: "getrandom", Policy: BufferWriting, Buffers: []BufferArg{
		{AddrArgIndex: 0, LenArgIndex: 1},
	}},
	293: {Name: "rseq", Policy: ReExecute},
}
