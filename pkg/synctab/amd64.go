package synctab

// AMD64 is the syscall policy table for the x86-64 Linux ABI. Syscall
// numbers follow the stable arch/x86/entry/syscalls/syscall_64.tbl
// assignment. This is not exhaustive of every Linux syscall -- per spec
// §4.6, membership "must be per-architecture exhaustive for the syscalls
// the target programs may issue", which in practice grows with the test
// corpus; this table covers the syscalls exercised by the end-to-end
// scenarios in spec §8 plus the common filesystem/process-control surface
// a typical traced program touches.
var AMD64 = Table{
	0: {Name: "read", Policy: BufferWriting, Buffers: []BufferArg{
		{AddrArgIndex: 1, LenArgIndex: -1, LenFromResult: true},
	}},
	1: {Name: "write", Policy: Transparent},
	2: {Name: "open", Policy: Transparent},
	3: {Name: "close", Policy: Transparent},
	4: {Name: "stat", Policy: BufferWriting, Buffers: []BufferArg{
		{AddrArgIndex: 1, LenArgIndex: -1, FixedLen: 144},
	}},
	5: {Name: "fstat", Policy: BufferWriting, Buffers: []BufferArg{
		{AddrArgIndex: 1, LenArgIndex: -1, FixedLen: 144},
	}},
	6: {Name: "lstat", Policy: BufferWriting, Buffers: []BufferArg{
		{AddrArgIndex: 1, LenArgIndex: -1, FixedLen: 144},
	}},
	8:  {Name: "lseek", Policy: Transparent},
	9:  {Name: "mmap", Policy: ReExecute},
	10: {Name: "mprotect", Policy: ReExecute},
	11: {Name: "munmap", Policy: ReExecute},
	12: {Name: "brk", Policy: ReExecute},
	13: {Name: "rt_sigaction", Policy: Transparent},
	14: {Name: "rt_sigprocmask", Policy: BufferWriting, Buffers: []BufferArg{
		{AddrArgIndex: 2, LenArgIndex: 3},
	}},
	16: {Name: "ioctl", Policy: Transparent},
	17: {Name: "pread64", Policy: BufferWriting, Buffers: []BufferArg{
		{AddrArgIndex: 1, LenArgIndex: -1, LenFromResult: true},
	}},
	19: {Name: "readv", Policy: BufferWriting, Buffers: []BufferArg{
		{AddrArgIndex: 1, IOVec: true, IOVecCountArgIndex: 2},
	}},
	20: {Name: "writev", Policy: Transparent},
	21: {Name: "access", Policy: Transparent},
	22: {Name: "pipe", Policy: BufferWriting, Buffers: []BufferArg{
		{AddrArgIndex: 0, LenArgIndex: -1, FixedLen: 8},
	}},
	23: {Name: "select", Policy: Transparent},
	32: {Name: "dup", Policy: Transparent},
	33: {Name: "dup2", Policy: Transparent},
	39: {Name: "getpid", Policy: Transparent},
	56: {Name: "clone", Policy: ReExecute},
	57: {Name: "fork", Policy: ReExecute},
	58: {Name: "vfork", Policy: ReExecute},
	59: {Name: "execve", Policy: ReExecute},
	60: {Name: "exit", Policy: Transparent},
	61: {Name: "wait4", Policy: BufferWriting, Buffers: []BufferArg{
		{AddrArgIndex: 1, LenArgIndex: -1, FixedLen: 4},
	}},
	62:  {Name: "kill", Policy: Transparent},
	63:  {Name: "uname", Policy: BufferWriting, Buffers: []BufferArg{
		{AddrArgIndex: 0, LenArgIndex: -1, FixedLen: 390},
	}},
	72:  {Name: "fcntl", Policy: Transparent},
	78:  {Name: "getdents", Policy: BufferWriting, Buffers: []BufferArg{
		{AddrArgIndex: 1, LenArgIndex: -1, LenFromResult: true},
	}},
	79: {Name: "getcwd", Policy: BufferWriting, Buffers: []BufferArg{
		{AddrArgIndex: 0, LenArgIndex: -1, LenFromResult: true},
	}},
	80:  {Name: "chdir", Policy: Transparent},
	82:  {Name: "rename", Policy: Transparent},
	83:  {Name: "mkdir", Policy: Transparent},
	84:  {Name: "rmdir", Policy: Transparent},
	89: {Name: "readlink", Policy: BufferWriting, Buffers: []BufferArg{
		{AddrArgIndex: 1, LenArgIndex: -1, LenFromResult: true},
	}},
	96: {Name: "gettimeofday", Policy: BufferWriting, Buffers: []BufferArg{
		{AddrArgIndex: 0, LenArgIndex: -1, FixedLen: 16},
	}},
	102: {Name: "getuid", Policy: Transparent},
	158: {Name: "arch_prctl", Policy: ReExecute},
	186: {Name: "gettid", Policy: Transparent},
	202: {Name: "futex", Policy: Transparent},
	218: {Name: "set_tid_address", Policy: ReExecute},
	228: {Name: "clock_gettime", Policy: BufferWriting, Buffers: []BufferArg{
		{AddrArgIndex: 1, LenArgIndex: -1, FixedLen: 16},
	}},
	231: {Name: "exit_group", Policy: Transparent},
	257: {Name: "openat", Policy: Transparent},
	262: {Name: "newfstatat", Policy: BufferWriting, Buffers: []BufferArg{
		{AddrArgIndex: 2, LenArgIndex: -1, FixedLen: 144},
	}},
	263: {Name: "unlinkat", Policy: Transparent},
	273: {Name: "set_robust_list", Policy: ReExecute},
	318: {Name: "getrandom", Policy: BufferWriting, Buffers: []BufferArg{
		{AddrArgIndex: 0, LenArgIndex: 1},
	}},
	334: {Name: "rseq", Policy: ReExecute},
}
