//go:build arm64

package trace

func detectHostArch() ArchTag { return ArchARM64 }
