package spawn

import (
	"errors"
	"strings"
	"syscall"
	"testing"

	"github.com/hashicorp/go-multierror"

	"github.com/mbrock/spawn/pkg/spawn/fdplan"
)

func TestValidate_CollectsEveryProblem(t *testing.T) {
	req := &Request{
		Setsid:  true,
		Setpgid: true,
		Stdio:   fdplan.Table{-7, fdplan.Unset, fdplan.Unset, fdplan.Unset, fdplan.Unset, fdplan.Unset},
	}
	_, err := New().Spawn(req)

	var serr *Error
	if !errors.As(err, &serr) || serr.Op != "validate" {
		t.Fatalf("Spawn error = %v, want validate *Error", err)
	}
	if !errors.Is(err, syscall.EINVAL) {
		t.Errorf("error does not unwrap to EINVAL: %v", err)
	}
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		t.Fatalf("error does not carry the problem list: %v", err)
	}
	// path, args, setsid+setpgid, stdio
	if len(merr.Errors) != 4 {
		t.Errorf("got %d problems: %v", len(merr.Errors), merr.Errors)
	}
	if !errors.Is(err, syscall.EBADF) {
		t.Errorf("stdio problem lost its errno: %v", err)
	}
}

func TestValidate(t *testing.T) {
	ok := func() Request {
		return Request{Path: "/bin/true", Args: []string{"true"}, Stdio: fdplan.NewTable()}
	}
	tests := []struct {
		name   string
		modify func(*Request)
		want   string
	}{
		{"valid", func(*Request) {}, ""},
		{"nul in arg", func(r *Request) { r.Args = append(r.Args, "a\x00b") }, "argument contains NUL"},
		{"nul in env", func(r *Request) { r.Env = []string{"A=\x00"} }, "environment entry contains NUL"},
		{"negative pgid", func(r *Request) { r.Setpgid, r.Pgid = true, -1 }, "negative process group id"},
		{"pgid without setpgid", func(r *Request) { r.Pgid = 4 }, "pgid given without setpgid"},
		{"unregistered hook", func(r *Request) { r.PreExec = Hook{name: "missing"} }, "not registered"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := ok()
			tt.modify(&req)
			err := req.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestRegisterHook_Duplicate(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("duplicate RegisterHook did not panic")
		}
	}()
	RegisterHook(noopHook.Name(), func() error { return nil })
}

func TestErrno(t *testing.T) {
	if Errno(nil) != 0 {
		t.Error("Errno(nil) != 0")
	}
	wrapped := &Error{Op: "exec", Err: syscall.ENOENT}
	if Errno(wrapped) != syscall.ENOENT {
		t.Errorf("Errno(%v) = %v", wrapped, Errno(wrapped))
	}
	if Errno(errors.New("plain")) != syscall.EINVAL {
		t.Error("plain error should map to EINVAL")
	}
	if got := wrapped.Error(); !strings.Contains(got, "exec") {
		t.Errorf("Error() = %q", got)
	}
}
