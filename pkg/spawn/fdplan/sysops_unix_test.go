//go:build unix

package fdplan

import (
	"os"
	"testing"

	"golang.org/x/sys/unix"
)

func TestSysOps_HighDescriptors(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	const target = 200
	ops := SysOps{}
	if err := ops.Dup2(int(w.Fd()), target); err != nil {
		t.Fatalf("Dup2: %v", err)
	}
	if err := SetCloseOnExec(target); err != nil {
		t.Fatalf("SetCloseOnExec: %v", err)
	}
	if flags, _ := unix.FcntlInt(target, unix.F_GETFD, 0); flags&unix.FD_CLOEXEC == 0 {
		t.Fatalf("close-on-exec not set")
	}
	if err := ops.ClearCloseOnExec(target); err != nil {
		t.Fatalf("ClearCloseOnExec: %v", err)
	}
	if flags, _ := unix.FcntlInt(target, unix.F_GETFD, 0); flags&unix.FD_CLOEXEC != 0 {
		t.Fatalf("close-on-exec still set")
	}

	if _, err := unix.Write(target, []byte("x")); err != nil {
		t.Fatalf("write through duplicate: %v", err)
	}
	buf := make([]byte, 1)
	if _, err := r.Read(buf); err != nil || buf[0] != 'x' {
		t.Fatalf("read = %q, %v", buf, err)
	}

	if err := ops.Close(target); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := ops.Close(target); err != unix.EBADF {
		t.Fatalf("second Close = %v, want EBADF", err)
	}
}
