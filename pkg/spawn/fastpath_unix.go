//go:build unix

package spawn

import (
	"syscall"

	"github.com/mbrock/spawn/pkg/spawn/fdplan"
)

func init() {
	register(FastPath, spawnFastPath)
}

// spawnFastPath makes one call to the runtime's create-and-exec primitive.
// The runtime's child restores the caught signals it owns and reports any
// failure through its own pipe. Ignored or blocked signals would survive
// that, so such a process hands the request to the helper instead.
func spawnFastPath(sp *Spawner, req *Request, env []string) (int, error) {
	if inheritsSignalState() {
		return sp.runHelper(req, env, modeDirect)
	}
	pid, err := syscall.ForkExec(req.Path, req.Args, &syscall.ProcAttr{
		Dir:   req.Dir,
		Env:   env,
		Files: fdplan.FileTable(req.Stdio),
		Sys: &syscall.SysProcAttr{
			Setpgid: req.Setpgid,
			Pgid:    req.Pgid,
		},
	})
	if err != nil {
		return 0, &Error{Op: "exec", Err: Errno(err)}
	}
	return pid, nil
}
