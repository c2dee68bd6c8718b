//go:build windows

package waitstatus

import "syscall"

// Decode treats raw as a process exit code; windows has no signal or
// stop conditions.
func Decode(raw uint32) Status {
	return Status{raw: raw, kind: Exited, value: int(raw)}
}

func fromSys(sys any) Status {
	ws, ok := sys.(syscall.WaitStatus)
	if !ok {
		return Status{}
	}
	return Decode(ws.ExitCode)
}

func signalName(sig syscall.Signal) string { return sig.String() }

func exitRaw(code int) uint32 { return uint32(code) }
