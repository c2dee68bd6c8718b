package spawn

import (
	"syscall"

	"github.com/mbrock/spawn/pkg/spawn/fdplan"
)

func init() {
	register(FastPath, spawnFastPath)
}

// spawnFastPath starts the process with CreateProcess through the runtime.
// Child slots hold handles; Closed streams get none.
func spawnFastPath(_ *Spawner, req *Request, env []string) (int, error) {
	if req.Setpgid && req.Pgid != 0 {
		return 0, &Error{Op: "setpgid", Err: syscall.ENOTSUP}
	}

	std := [3]syscall.Handle{syscall.Stdin, syscall.Stdout, syscall.Stderr}
	files := make([]uintptr, 3)
	for s := fdplan.Stdin; s <= fdplan.Stderr; s++ {
		switch h := req.Stdio.Child(s); {
		case req.Stdio == (fdplan.Table{}), h == fdplan.Unset:
			files[s] = uintptr(std[s])
		case h == fdplan.Closed:
			files[s] = 0
		default:
			files[s] = uintptr(h)
		}
	}

	sys := &syscall.SysProcAttr{}
	if req.Setpgid {
		sys.CreationFlags |= syscall.CREATE_NEW_PROCESS_GROUP
	}
	pid, handle, err := syscall.StartProcess(req.Path, req.Args, &syscall.ProcAttr{
		Dir:   req.Dir,
		Env:   env,
		Files: files,
		Sys:   sys,
	})
	if err != nil {
		return 0, &Error{Op: "exec", Err: Errno(err)}
	}
	syscall.CloseHandle(syscall.Handle(handle))
	return pid, nil
}
