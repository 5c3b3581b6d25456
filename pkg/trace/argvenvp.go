package trace

import (
	"fmt"
	"os"
)

// WriteArgvEnvp serializes the tracee's initial argv and envp to path,
// verbatim and without the fixed-size caps the original C driver used
// (spec §9: "an implementation should use growable owned sequences of
// owned byte strings and drop the limits"). This is the argv_envp file of
// the trace directory layout (spec §6).
func WriteArgvEnvp(path string, argv, envp []string) error {
	var buf []byte
	buf = appendStrings(buf, argv)
	buf = appendStrings(buf, envp)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("trace: write argv_envp %s: %w", path, err)
	}
	return nil
}

// ReadArgvEnvp parses the argv_envp file written by WriteArgvEnvp.
func ReadArgvEnvp(path string) (argv, envp []string, err error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("trace: read argv_envp %s: %w", path, err)
	}
	argv, o, err := readStrings(buf, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("trace: parse argv_envp %s: %w", path, err)
	}
	envp, _, err = readStrings(buf, o)
	if err != nil {
		return nil, nil, fmt.Errorf("trace: parse argv_envp %s: %w", path, err)
	}
	return argv, envp, nil
}
