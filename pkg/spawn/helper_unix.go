//go:build unix

package spawn

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/mbrock/spawn/pkg/spawn/environ"
	"github.com/mbrock/spawn/pkg/spawn/fdplan"
)

// Descriptor layout of the helper child.
const (
	planFD  = 3
	errorFD = 4
	// firstPassedFD is where a direct-mode helper receives the caller's
	// descriptors.
	firstPassedFD = 5
)

// helperArg0 marks a process started as helper child.
const helperArg0 = "spawn:helper"

type helperMode string

const (
	// modeExecInPlace changes identity and session, then execs.
	modeExecInPlace helperMode = "exec-in-place"
	// modeDirect applies every directive including the descriptor plan
	// and the hook, then execs.
	modeDirect helperMode = "direct"
)

// helperReady is the first byte a helper writes on the error pipe. A
// helper that exits without it never reached Init.
const helperReady = 'R'

var errNoInit = errors.New("helper exited before spawn.Init took over")

// helperPlan is sent to the helper over the plan pipe. Path, Args, Env and
// Dir travel as bytes: exec only forbids NUL, and a JSON string would
// replace invalid UTF-8.
type helperPlan struct {
	Mode    helperMode      `json:"mode"`
	Path    []byte          `json:"path"`
	Args    [][]byte        `json:"args"`
	Env     [][]byte        `json:"env"`
	Dir     []byte          `json:"dir,omitempty"`
	UID     *uint32         `json:"uid,omitempty"`
	GID     *uint32         `json:"gid,omitempty"`
	Groups  []uint32        `json:"groups,omitempty"`
	Setsid  bool            `json:"setsid,omitempty"`
	Setpgid bool            `json:"setpgid,omitempty"`
	Pgid    int             `json:"pgid,omitempty"`
	Actions []fdplan.Action `json:"actions,omitempty"`
	Closed  []int           `json:"closed,omitempty"`
	Hook    string          `json:"hook,omitempty"`
}

func newHelperPlan(req *Request, env []string, mode helperMode) *helperPlan {
	plan := &helperPlan{
		Mode:    mode,
		Path:    []byte(req.Path),
		Args:    toBytes(req.Args),
		Env:     toBytes(env),
		Setsid:  req.Setsid,
		Setpgid: req.Setpgid,
		Pgid:    req.Pgid,
		Hook:    req.PreExec.Name(),
	}
	if req.Dir != "" {
		plan.Dir = []byte(req.Dir)
	}
	// Same rule as the runtime path: a missing half is the caller's real id.
	if cred := credential(req.Identity); cred != nil {
		plan.UID, plan.GID, plan.Groups = &cred.Uid, &cred.Gid, req.Identity.Groups
	}
	return plan
}

func toBytes(ss []string) [][]byte {
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = []byte(s)
	}
	return out
}

func toStrings(bs [][]byte) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = string(b)
	}
	return out
}

// helperStep identifies what the helper was doing when it failed.
type helperStep uint32

const (
	stepPlan helperStep = iota + 1
	stepSetgroups
	stepSetgid
	stepSetuid
	stepSetsid
	stepChdir
	stepSetpgid
	stepDescriptors
	stepSigmask
	stepHook
	stepExec
)

var stepNames = [...]string{
	stepPlan:        "plan",
	stepSetgroups:   "setgroups",
	stepSetgid:      "setgid",
	stepSetuid:      "setuid",
	stepSetsid:      "setsid",
	stepChdir:       "chdir",
	stepSetpgid:     "setpgid",
	stepDescriptors: "descriptors",
	stepSigmask:     "sigmask",
	stepHook:        "hook",
	stepExec:        "exec",
}

func (s helperStep) String() string {
	if int(s) < len(stepNames) && stepNames[s] != "" {
		return stepNames[s]
	}
	return "helper"
}

// report is what a failing helper writes to the error pipe.
type report struct {
	errno syscall.Errno
	step  helperStep
}

func (r report) encode() []byte {
	var b [8]byte
	binary.NativeEndian.PutUint32(b[:4], uint32(r.errno))
	binary.NativeEndian.PutUint32(b[4:], uint32(r.step))
	return b[:]
}

// awaitHelper reads the ready byte.
func awaitHelper(r io.Reader) error {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return errNoInit
		}
		return err
	}
	if b[0] != helperReady {
		return syscall.EPROTO
	}
	return nil
}

// readReport reads the error pipe until the helper execs (EOF, no report)
// or reports a failure. A helper that dies without writing looks like a
// successful exec; its exit status tells the caller.
func readReport(r io.Reader) (report, bool, error) {
	var b [8]byte
	n, err := io.ReadFull(r, b[:])
	switch {
	case n == 0 && errors.Is(err, io.EOF):
		return report{}, false, nil
	case n >= 4:
		rep := report{errno: syscall.Errno(binary.NativeEndian.Uint32(b[:4]))}
		if n == 8 {
			rep.step = helperStep(binary.NativeEndian.Uint32(b[4:]))
		}
		return rep, true, nil
	case err != nil && !errors.Is(err, io.ErrUnexpectedEOF):
		return report{}, false, err
	}
	return report{errno: syscall.EPIPE}, true, nil
}

// runHelper starts the helper child, sends it the plan and waits until it
// has either exec'd the target or reported why it could not.
func (sp *Spawner) runHelper(req *Request, env []string, mode helperMode) (int, error) {
	self, err := sp.self()
	if err != nil {
		return 0, &Error{Op: "helper", Err: Errno(err), Detail: err}
	}

	plan := newHelperPlan(req, env, mode)

	var files, passed []uintptr
	switch mode {
	case modeExecInPlace:
		files = fdplan.FileTable(req.Stdio)
		for s := fdplan.Stdin; s <= fdplan.Stderr; s++ {
			if req.Stdio.Child(s) == fdplan.Closed {
				plan.Closed = append(plan.Closed, int(s))
			}
		}
	case modeDirect:
		remapped, orig := fdplan.Remap(req.Stdio, firstPassedFD)
		if plan.Actions, err = fdplan.Plan(remapped); err != nil {
			return 0, &Error{Op: "plan", Err: Errno(err)}
		}
		files = []uintptr{0, 1, 2}
		for _, fd := range orig {
			passed = append(passed, uintptr(fd))
		}
	}

	planR, planW, err := os.Pipe()
	if err != nil {
		return 0, &Error{Op: "pipe", Err: Errno(err)}
	}
	defer planW.Close()
	errR, errW, err := os.Pipe()
	if err != nil {
		planR.Close()
		return 0, &Error{Op: "pipe", Err: Errno(err)}
	}
	defer errR.Close()

	files = append(files, planR.Fd(), errW.Fd())
	files = append(files, passed...)

	// The helper is a Go program of ours; it runs under the caller's
	// environment and only the target gets env.
	pid, err := syscall.ForkExec(self, []string{helperArg0}, &syscall.ProcAttr{
		Env:   environ.Environ(),
		Files: files,
	})
	planR.Close()
	errW.Close()
	if err != nil {
		return 0, &Error{Op: "fork", Err: Errno(err)}
	}

	if err := awaitHelper(errR); err != nil {
		if errors.Is(err, errNoInit) {
			reap(pid)
			return 0, &Error{Op: "helper", Pid: pid, Err: syscall.ENOEXEC, Detail: err}
		}
		// Whatever is on the other end is not our helper.
		_ = unix.Kill(pid, unix.SIGKILL)
		reap(pid)
		return 0, &Error{Op: "helper", Pid: pid, Err: Errno(err)}
	}

	if err := json.NewEncoder(planW).Encode(plan); err != nil {
		reap(pid)
		return 0, &Error{Op: "plan", Pid: pid, Err: Errno(err)}
	}
	planW.Close()

	rep, failed, err := readReport(errR)
	if err != nil {
		reap(pid)
		return 0, &Error{Op: "report", Pid: pid, Err: Errno(err)}
	}
	if failed {
		reap(pid)
		return 0, &Error{Op: rep.step.String(), Pid: pid, Err: rep.errno}
	}
	return pid, nil
}

// reap waits for a helper that reported failure.
func reap(pid int) {
	var ws unix.WaitStatus
	for {
		_, err := unix.Wait4(pid, &ws, 0, nil)
		if err != unix.EINTR {
			return
		}
	}
}
