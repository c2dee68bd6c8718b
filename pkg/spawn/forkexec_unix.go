//go:build unix

package spawn

import (
	"os"
	"syscall"

	"github.com/mbrock/spawn/pkg/spawn/fdplan"
)

func init() {
	register(ForkExec, spawnForkExec)
}

// spawnForkExec lets the runtime's child apply every directive it knows.
// Hooked requests need caller code in the child, and ignored or blocked
// signals need resetting; both go through the helper in direct mode.
func spawnForkExec(sp *Spawner, req *Request, env []string) (int, error) {
	if !req.PreExec.IsZero() || inheritsSignalState() {
		return sp.runHelper(req, env, modeDirect)
	}
	pid, err := syscall.ForkExec(req.Path, req.Args, &syscall.ProcAttr{
		Dir:   req.Dir,
		Env:   env,
		Files: fdplan.FileTable(req.Stdio),
		Sys: &syscall.SysProcAttr{
			Credential: credential(req.Identity),
			Setsid:     req.Setsid,
			Setpgid:    req.Setpgid,
			Pgid:       req.Pgid,
		},
	})
	if err != nil {
		return 0, &Error{Op: "fork/exec", Err: Errno(err)}
	}
	return pid, nil
}

// credential fills the missing half of a partial identity with the
// caller's real ids. Without groups the supplementary list is left alone.
func credential(id *Identity) *syscall.Credential {
	if id.empty() {
		return nil
	}
	cred := &syscall.Credential{
		Uid:         uint32(os.Getuid()),
		Gid:         uint32(os.Getgid()),
		Groups:      id.Groups,
		NoSetGroups: len(id.Groups) == 0,
	}
	if id.UID != nil {
		cred.Uid = *id.UID
	}
	if id.GID != nil {
		cred.Gid = *id.GID
	}
	return cred
}
