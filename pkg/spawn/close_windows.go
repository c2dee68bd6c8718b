package spawn

import (
	"sync"

	"golang.org/x/sys/windows"
)

const wmClose = 0x0010

var (
	user32           = windows.NewLazySystemDLL("user32.dll")
	procPostMessageW = user32.NewProc("PostMessageW")

	enumOnce     sync.Once
	enumCallback uintptr

	// EnumWindows callbacks cannot carry Go state, so one search runs at
	// a time through these.
	closeMu     sync.Mutex
	closeTarget uint32
	closeFound  windows.HWND
)

// RequestGracefulClose posts WM_CLOSE to the first top-level window owned
// by pid and reports whether one was found and the message was queued. It
// does not wait for the process to exit.
func RequestGracefulClose(pid int) bool {
	if pid <= 0 {
		return false
	}
	closeMu.Lock()
	defer closeMu.Unlock()

	enumOnce.Do(func() { enumCallback = windows.NewCallback(findWindow) })
	closeTarget = uint32(pid)
	closeFound = 0
	// EnumWindows reports an error when the callback stops early.
	_ = windows.EnumWindows(enumCallback, nil)
	if closeFound == 0 {
		return false
	}
	r, _, _ := procPostMessageW.Call(uintptr(closeFound), wmClose, 0, 0)
	return r != 0
}

func findWindow(hwnd windows.HWND, _ uintptr) uintptr {
	var owner uint32
	if _, err := windows.GetWindowThreadProcessId(hwnd, &owner); err == nil && owner == closeTarget {
		closeFound = hwnd
		return 0
	}
	return 1
}
