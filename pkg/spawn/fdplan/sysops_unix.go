//go:build unix

package fdplan

import "golang.org/x/sys/unix"

// SysOps applies plans to the calling process's descriptor table.
type SysOps struct{}

var _ Ops = SysOps{}

func (SysOps) Dup2(src, dst int) error { return dup2(src, dst) }

func (SysOps) Close(fd int) error { return unix.Close(fd) }

func (SysOps) ClearCloseOnExec(fd int) error {
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	if err != nil {
		return err
	}
	_, err = unix.FcntlInt(uintptr(fd), unix.F_SETFD, flags&^unix.FD_CLOEXEC)
	return err
}

// SetCloseOnExec marks fd close-on-exec.
func SetCloseOnExec(fd int) error {
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	if err != nil {
		return err
	}
	_, err = unix.FcntlInt(uintptr(fd), unix.F_SETFD, flags|unix.FD_CLOEXEC)
	return err
}
