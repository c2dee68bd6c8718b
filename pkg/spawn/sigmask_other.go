//go:build unix && !linux

package spawn

// The runtime leaves the signal mask empty on exec outside linux.
func resetSignalMask() error { return nil }

func signalsBlocked() bool { return false }
