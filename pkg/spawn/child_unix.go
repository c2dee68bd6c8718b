//go:build unix

package spawn

import (
	"encoding/json"
	"os"
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/mbrock/spawn/pkg/spawn/fdplan"
)

// Init runs the helper child when the process was started as one and
// returns false otherwise. Call it before anything else in main, or in
// TestMain for tests that spawn through the helper. In a helper it does not
// return.
func Init() bool {
	if len(os.Args) != 1 || os.Args[0] != helperArg0 {
		return false
	}
	runtime.LockOSThread()
	runHelperChild()
	return true
}

func runHelperChild() {
	if _, err := unix.Write(errorFD, []byte{helperReady}); err != nil {
		unix.Exit(127)
	}
	if err := fdplan.SetCloseOnExec(errorFD); err != nil {
		fail(stepPlan, err)
	}
	plan, err := readPlan()
	if err != nil {
		fail(stepPlan, err)
	}
	switch plan.Mode {
	case modeExecInPlace:
		execInPlace(plan)
	case modeDirect:
		execDirect(plan)
	default:
		fail(stepPlan, unix.EINVAL)
	}
}

func readPlan() (*helperPlan, error) {
	f := os.NewFile(planFD, "spawn-plan")
	defer f.Close()
	var plan helperPlan
	if err := json.NewDecoder(f).Decode(&plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// execInPlace is the pre-fork order: credentials first, then session,
// directory and group, then the program replaces the helper.
func execInPlace(plan *helperPlan) {
	setCredentials(plan)
	if plan.Setsid {
		check(stepSetsid, setsid())
	}
	if len(plan.Dir) > 0 {
		check(stepChdir, unix.Chdir(string(plan.Dir)))
	}
	if plan.Setpgid {
		check(stepSetpgid, unix.Setpgid(0, plan.Pgid))
	}
	// The runtime may have put /dev/null on streams that arrived closed.
	for _, fd := range plan.Closed {
		if err := unix.Close(fd); err != nil && err != unix.EBADF {
			fail(stepDescriptors, err)
		}
	}
	check(stepSigmask, resetSignals())
	check(stepExec, unix.Exec(string(plan.Path), toStrings(plan.Args), toStrings(plan.Env)))
}

// execDirect is the fork/exec order: directory and credentials, session and
// group, descriptors, then the hook sees the finished child.
func execDirect(plan *helperPlan) {
	if len(plan.Dir) > 0 {
		check(stepChdir, unix.Chdir(string(plan.Dir)))
	}
	setCredentials(plan)
	if plan.Setsid {
		check(stepSetsid, setsid())
	}
	if plan.Setpgid {
		check(stepSetpgid, unix.Setpgid(0, plan.Pgid))
	}
	check(stepDescriptors, fdplan.Apply(plan.Actions, fdplan.SysOps{}))
	if plan.Hook != "" {
		fn, ok := lookupHook(plan.Hook)
		if !ok {
			fail(stepHook, unix.ENOENT)
		}
		check(stepHook, fn())
	}
	check(stepSigmask, resetSignals())
	check(stepExec, unix.Exec(string(plan.Path), toStrings(plan.Args), toStrings(plan.Env)))
}

// setCredentials drops supplementary groups and gid before uid; after a
// uid change the others may no longer be permitted.
func setCredentials(plan *helperPlan) {
	if len(plan.Groups) > 0 {
		groups := make([]int, len(plan.Groups))
		for i, g := range plan.Groups {
			groups[i] = int(g)
		}
		check(stepSetgroups, unix.Setgroups(groups))
	}
	if plan.GID != nil {
		check(stepSetgid, unix.Setgid(int(*plan.GID)))
	}
	if plan.UID != nil {
		check(stepSetuid, unix.Setuid(int(*plan.UID)))
	}
}

func setsid() error {
	_, err := unix.Setsid()
	return err
}

func check(step helperStep, err error) {
	if err != nil {
		fail(step, err)
	}
}

// fail reports to the parent and exits without running deferred code or
// flushing anything the target program might share.
func fail(step helperStep, err error) {
	_, _ = unix.Write(errorFD, report{errno: Errno(err), step: step}.encode())
	unix.Exit(127)
}
