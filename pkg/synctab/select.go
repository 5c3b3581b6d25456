package synctab

import "runtime"

// ForHostArch returns the policy table for the architecture this binary
// was built for.
func ForHostArch() Table {
	switch runtime.GOARCH {
	case "arm64":
		return ARM64
	default:
		return AMD64
	}
}
