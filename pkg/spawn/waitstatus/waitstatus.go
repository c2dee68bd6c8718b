// Package waitstatus decodes raw process wait statuses into the way a
// process ended: exited with a code, killed by a signal, or stopped.
//
// Decoding is pure and safe to call from any goroutine. Reaping itself
// (wait4, waitid, os.Process.Wait) is left to the caller.
package waitstatus

import (
	"fmt"
	"os"
	"syscall"
)

// Kind identifies which view of a wait status applies.
type Kind uint8

const (
	// Exited means the process called exit; Code holds the status.
	Exited Kind = iota + 1
	// Signaled means the process was terminated by Signal.
	Signaled
	// Stopped means the process was stopped by Signal (WUNTRACED).
	Stopped
	// Continued means a stopped process was resumed (WCONTINUED).
	Continued
)

func (k Kind) String() string {
	switch k {
	case Exited:
		return "exited"
	case Signaled:
		return "signaled"
	case Stopped:
		return "stopped"
	case Continued:
		return "continued"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Status is a decoded wait status. The zero value is not a valid status.
type Status struct {
	raw   uint32
	kind  Kind
	value int
	core  bool
}

// Raw returns the status exactly as the wait primitive produced it.
func (s Status) Raw() uint32 { return s.raw }

// Kind returns which view applies.
func (s Status) Kind() Kind { return s.kind }

// Exited reports whether the process exited normally.
func (s Status) Exited() bool { return s.kind == Exited }

// Signaled reports whether the process was terminated by a signal.
func (s Status) Signaled() bool { return s.kind == Signaled }

// Stopped reports whether the process is stopped.
func (s Status) Stopped() bool { return s.kind == Stopped }

// Continued reports whether the process was resumed after a stop.
func (s Status) Continued() bool { return s.kind == Continued }

// Code returns the exit code, or -1 if the process did not exit.
func (s Status) Code() int {
	if s.kind != Exited {
		return -1
	}
	return s.value
}

// Signal returns the terminating or stopping signal, or -1.
func (s Status) Signal() syscall.Signal {
	if s.kind != Signaled && s.kind != Stopped {
		return -1
	}
	return syscall.Signal(s.value)
}

// CoreDump reports whether a signaled process dumped core.
func (s Status) CoreDump() bool { return s.kind == Signaled && s.core }

// ShellCode maps the status onto the exit code a shell would report:
// the exit code itself, or 128 plus the signal number.
func (s Status) ShellCode() int {
	switch s.kind {
	case Exited:
		return s.value
	case Signaled, Stopped:
		return 128 + s.value
	default:
		return 0
	}
}

func (s Status) String() string {
	switch s.kind {
	case Exited:
		return fmt.Sprintf("exited %d", s.value)
	case Signaled:
		if s.core {
			return fmt.Sprintf("signaled %d (%s, core dumped)", s.value, signalName(syscall.Signal(s.value)))
		}
		return fmt.Sprintf("signaled %d (%s)", s.value, signalName(syscall.Signal(s.value)))
	case Stopped:
		return fmt.Sprintf("stopped %d (%s)", s.value, signalName(syscall.Signal(s.value)))
	case Continued:
		return "continued"
	default:
		return fmt.Sprintf("invalid status %#x", s.raw)
	}
}

// FromProcessState decodes the status held by a finished os.Process wait.
func FromProcessState(ps *os.ProcessState) Status {
	if ps == nil {
		return Status{}
	}
	return fromSys(ps.Sys())
}

// ExitedWith returns the status of a process that exited with code. Raw is
// in the platform's wait layout.
func ExitedWith(code int) Status {
	code &= 0xff
	return Status{raw: exitRaw(code), kind: Exited, value: code}
}

// SignaledWith returns the status of a process killed by sig.
func SignaledWith(sig syscall.Signal) Status {
	return Status{raw: uint32(sig) & 0x7f, kind: Signaled, value: int(sig) & 0x7f}
}
