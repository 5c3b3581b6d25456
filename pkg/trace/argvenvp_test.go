package trace

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestArgvEnvpRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "argv_envp")
	argv := []string{"/bin/echo", "hello", "world"}
	envp := []string{"PATH=/bin", "HOME=/root"}

	if err := WriteArgvEnvp(path, argv, envp); err != nil {
		t.Fatalf("WriteArgvEnvp: %v", err)
	}

	gotArgv, gotEnvp, err := ReadArgvEnvp(path)
	if err != nil {
		t.Fatalf("ReadArgvEnvp: %v", err)
	}
	if !reflect.DeepEqual(gotArgv, argv) {
		t.Errorf("argv = %v, want %v", gotArgv, argv)
	}
	if !reflect.DeepEqual(gotEnvp, envp) {
		t.Errorf("envp = %v, want %v", gotEnvp, envp)
	}
}

func TestArgvEnvpEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "argv_envp")
	if err := WriteArgvEnvp(path, nil, nil); err != nil {
		t.Fatalf("WriteArgvEnvp: %v", err)
	}
	argv, envp, err := ReadArgvEnvp(path)
	if err != nil {
		t.Fatalf("ReadArgvEnvp: %v", err)
	}
	if len(argv) != 0 || len(envp) != 0 {
		t.Errorf("argv=%v envp=%v, want both empty", argv, envp)
	}
}
