//go:build unix

package waitstatus

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// Decode translates a raw status from wait4/waitpid. Exactly one Kind
// applies to every status the kernel can produce; values the kernel never
// produces decode to something, but not meaningfully.
func Decode(raw uint32) Status {
	ws := unix.WaitStatus(raw)
	switch {
	case ws.Exited():
		return Status{raw: raw, kind: Exited, value: ws.ExitStatus()}
	case ws.Signaled():
		return Status{raw: raw, kind: Signaled, value: int(ws.Signal()), core: ws.CoreDump()}
	case ws.Stopped():
		return Status{raw: raw, kind: Stopped, value: int(ws.StopSignal())}
	default:
		return Status{raw: raw, kind: Continued}
	}
}

func fromSys(sys any) Status {
	ws, ok := sys.(syscall.WaitStatus)
	if !ok {
		return Status{}
	}
	return Decode(uint32(ws))
}

func signalName(sig syscall.Signal) string {
	if name := unix.SignalName(sig); name != "" {
		return name
	}
	return sig.String()
}

func exitRaw(code int) uint32 { return uint32(code) << 8 }
