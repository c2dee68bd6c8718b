package spawn

import (
	"runtime"

	"golang.org/x/sys/unix"
)

func resetSignalMask() error {
	var none unix.Sigset_t
	return unix.PthreadSigmask(unix.SIG_SETMASK, &none, nil)
}

// signalsBlocked reports whether this thread blocks any signal. The
// runtime's child restores the forking thread's mask before exec.
func signalsBlocked() bool {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	var cur unix.Sigset_t
	if err := unix.PthreadSigmask(unix.SIG_BLOCK, nil, &cur); err != nil {
		return false
	}
	return cur != unix.Sigset_t{}
}
