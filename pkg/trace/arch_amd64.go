//go:build amd64

package trace

func detectHostArch() ArchTag { return ArchAMD64 }
