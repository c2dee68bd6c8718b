package spawn

import (
	"errors"
	"fmt"
	"syscall"
)

// Error is the failure of one spawn attempt.
type Error struct {
	// Path is the requested executable.
	Path string
	// Op names the step that failed: "validate", "dispatch", "pipe",
	// "fork", "fork/exec", "setuid", "chdir", "exec", ...
	Op string
	// Strategy is the strategy that was running, Auto if none was chosen.
	Strategy Strategy
	// Pid is the helper child that reported the failure. It has already
	// been reaped; it is informational only.
	Pid int
	// Err is the OS error code.
	Err syscall.Errno
	// Detail carries validation problems.
	Detail error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("spawn %s: %s: %v", e.Path, e.Op, e.Err)
	if e.Detail != nil {
		msg += ": " + e.Detail.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Detail != nil {
		return []error{e.Err, e.Detail}
	}
	return []error{e.Err}
}

// Errno returns the OS error code carried by err, or 0 for nil. Errors that
// carry no code map to EINVAL.
func Errno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return syscall.EINVAL
}
