// spawn - start processes through the spawn engine
//
// Usage:
//
//	spawn run [flags] -- <path> [args...]    Spawn, wait, exit with the child's code
//	spawn plan [flags] -- <path> [args...]   Show strategy and descriptor plan
//	spawn status <raw>                       Decode a raw wait status
//	spawn env                                Print the environment
//	spawn close <pid>                        Ask a windowed process to close
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/mbrock/spawn/internal/executor"
	"github.com/mbrock/spawn/internal/logging"
	"github.com/mbrock/spawn/pkg/spawn"
	"github.com/mbrock/spawn/pkg/spawn/environ"
	"github.com/mbrock/spawn/pkg/spawn/waitstatus"
)

func main() {
	if spawn.Init() {
		return
	}
	a := &app{
		stdinFile: os.Stdin,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		exec:      executor.Default(),
		caps:      spawn.DefaultCapabilities(),
		lookupEnv: os.LookupEnv,
	}
	os.Exit(a.run(os.Args[1:]))
}

type app struct {
	stdinFile *os.File
	stdout    io.Writer
	stderr    io.Writer
	exec      executor.Executor
	caps      spawn.Capabilities
	lookupEnv func(string) (string, bool)

	// flags
	dir        string
	envFlags   []string
	clearEnv   bool
	uid        int64
	gid        int64
	groups     []uint
	setsid     bool
	pgid       int
	newPgrp    bool
	stdin      string
	stdoutMode string
	stderrMode string
	strategy   string
	noWait     bool
	pty        bool
	logLevel   string
	logJournal bool
}

// exitError carries an exit code out of a subcommand.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (a *app) getenv(key, def string) string {
	if v, ok := a.lookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func (a *app) flags() *flag.FlagSet {
	fs := flag.NewFlagSet("spawn", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.StringVar(&a.dir, "dir", "", "Working directory of the child")
	fs.StringArrayVarP(&a.envFlags, "env", "e", nil, "Set KEY=VALUE in the child environment (can be repeated)")
	fs.BoolVar(&a.clearEnv, "clear-env", false, "Start from an empty environment")
	fs.Int64Var(&a.uid, "uid", -1, "User id of the child")
	fs.Int64Var(&a.gid, "gid", -1, "Group id of the child")
	fs.UintSliceVar(&a.groups, "groups", nil, "Supplementary groups of the child (comma separated)")
	fs.BoolVar(&a.setsid, "setsid", false, "Start the child in a new session")
	fs.IntVar(&a.pgid, "pgid", 0, "Join process group PGID")
	fs.BoolVar(&a.newPgrp, "new-pgrp", false, "Start the child in a new process group")
	fs.StringVar(&a.stdin, "stdin", "inherit", "Child stdin: inherit, null, close")
	fs.StringVar(&a.stdoutMode, "stdout", "inherit", "Child stdout: inherit, null, close")
	fs.StringVar(&a.stderrMode, "stderr", "inherit", "Child stderr: inherit, null, close")
	fs.StringVar(&a.strategy, "strategy", a.getenv("SPAWN_STRATEGY", "auto"), "Strategy: auto, fast, prefork, forkexec (overrides SPAWN_STRATEGY)")
	fs.BoolVar(&a.noWait, "no-wait", false, "Print the pid and exit without waiting")
	fs.BoolVar(&a.pty, "pty", false, "Run on a new pseudo-terminal as session leader")
	fs.StringVar(&a.logLevel, "log-level", a.getenv("SPAWN_LOG_LEVEL", "warn"), "Log level: debug, info, warn, error (overrides SPAWN_LOG_LEVEL)")
	fs.BoolVar(&a.logJournal, "log-journal", false, "Log to journald when it is reachable")

	fs.Usage = func() {
		fmt.Fprintf(a.stderr, `spawn - start processes through the spawn engine

Usage:
  spawn run [flags] -- <path> [args...]    Spawn, wait, exit with the child's code
  spawn plan [flags] -- <path> [args...]   Show strategy and descriptor plan
  spawn status <raw>                       Decode a raw wait status
  spawn env                                Print the environment
  spawn close <pid>                        Ask a windowed process to close

Flags:
`)
		fs.PrintDefaults()
	}
	return fs
}

func (a *app) run(argv []string) int {
	fs := a.flags()
	if err := fs.Parse(argv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	level, err := logging.ParseLevel(a.logLevel)
	if err != nil {
		return a.fail(err)
	}
	logging.Setup(logging.Options{Level: level, Journal: a.logJournal, Writer: a.stderr})

	args := fs.Args()
	if len(args) == 0 {
		fs.Usage()
		return 2
	}
	cmd, cmdArgs := args[0], args[1:]

	switch cmd {
	case "run":
		if len(cmdArgs) == 0 {
			return a.usage("spawn run [flags] -- <path> [args...]")
		}
		err = a.cmdRun(cmdArgs)
	case "plan":
		if len(cmdArgs) == 0 {
			return a.usage("spawn plan [flags] -- <path> [args...]")
		}
		err = a.cmdPlan(cmdArgs)
	case "status":
		if len(cmdArgs) != 1 {
			return a.usage("spawn status <raw>")
		}
		err = a.cmdStatus(cmdArgs[0])
	case "env":
		a.cmdEnv()
	case "close":
		if len(cmdArgs) != 1 {
			return a.usage("spawn close <pid>")
		}
		err = a.cmdClose(cmdArgs[0])
	default:
		return a.usage("unknown command: " + cmd)
	}

	var ee *exitError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &ee):
		if ee.err != nil {
			fmt.Fprintf(a.stderr, "spawn: %v\n", ee.err)
		}
		return ee.code
	default:
		return a.fail(err)
	}
}

func (a *app) usage(msg string) int {
	fmt.Fprintf(a.stderr, "usage: %s\n", msg)
	return 2
}

func (a *app) fail(err error) int {
	fmt.Fprintf(a.stderr, "spawn: %v\n", err)
	return 1
}

// command turns the flags into an executor command. The returned cleanup
// closes /dev/null handles opened for null streams.
func (a *app) command(args []string) (*executor.Command, func(), error) {
	strategy, err := spawn.ParseStrategy(a.strategy)
	if err != nil {
		return nil, nil, err
	}
	cmd := &executor.Command{
		Args:     args,
		Dir:      a.dir,
		Env:      a.environment(),
		Setsid:   a.setsid,
		Strategy: strategy,
	}
	if a.newPgrp || a.pgid != 0 {
		cmd.Setpgid = true
		cmd.Pgid = a.pgid
	}
	if a.uid >= 0 || a.gid >= 0 || len(a.groups) > 0 {
		id := &spawn.Identity{}
		if a.uid >= 0 {
			u := uint32(a.uid)
			id.UID = &u
		}
		if a.gid >= 0 {
			g := uint32(a.gid)
			id.GID = &g
		}
		for _, g := range a.groups {
			id.Groups = append(id.Groups, uint32(g))
		}
		cmd.Identity = id
	}

	var opened []*os.File
	cleanup := func() {
		for _, f := range opened {
			f.Close()
		}
	}
	modes := []string{a.stdin, a.stdoutMode, a.stderrMode}
	for i, mode := range modes {
		switch mode {
		case "inherit", "":
		case "close":
			cmd.Closed[i] = true
		case "null":
			f, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
			if err != nil {
				cleanup()
				return nil, nil, err
			}
			opened = append(opened, f)
			switch i {
			case 0:
				cmd.Stdin = f
			case 1:
				cmd.Stdout = f
			case 2:
				cmd.Stderr = f
			}
		default:
			cleanup()
			return nil, nil, fmt.Errorf("stream mode %q: want inherit, null or close", mode)
		}
	}
	return cmd, cleanup, nil
}

// environment returns nil to inherit when no environment flag is given.
func (a *app) environment() []string {
	if !a.clearEnv && len(a.envFlags) == 0 {
		return nil
	}
	var base []string
	if !a.clearEnv {
		release := environ.Guard()
		base = environ.Environ()
		release()
	}
	return mergeEnv(base, a.envFlags)
}

// mergeEnv applies KEY=VALUE overrides to base, replacing earlier entries
// with the same key.
func mergeEnv(base, overrides []string) []string {
	out := make([]string, 0, len(base)+len(overrides))
	index := map[string]int{}
	add := func(kv string) {
		key, _, _ := strings.Cut(kv, "=")
		if i, ok := index[key]; ok {
			out[i] = kv
			return
		}
		index[key] = len(out)
		out = append(out, kv)
	}
	for _, kv := range base {
		add(kv)
	}
	for _, kv := range overrides {
		add(kv)
	}
	return out
}

func (a *app) cmdRun(args []string) error {
	cmd, cleanup, err := a.command(args)
	if err != nil {
		return err
	}
	defer cleanup()

	if a.pty {
		if a.noWait {
			return fmt.Errorf("--pty and --no-wait are mutually exclusive")
		}
		st, err := a.runPTY(cmd)
		if err != nil {
			return err
		}
		return exitStatus(args[0], st)
	}

	proc, err := a.exec.Start(cmd)
	if err != nil {
		return &exitError{code: startFailureCode(err), err: err}
	}
	if a.noWait {
		fmt.Fprintln(a.stdout, proc.Pid())
		return nil
	}

	st, err := proc.Wait()
	if err != nil {
		return fmt.Errorf("waiting for %d: %w", proc.Pid(), err)
	}
	return exitStatus(args[0], st)
}

func exitStatus(name string, st waitstatus.Status) error {
	if st.Exited() && st.Code() == 0 {
		return nil
	}
	return &exitError{code: st.ShellCode(), err: fmt.Errorf("%s: %v", name, st)}
}

// startFailureCode follows the shell: 127 for a missing program, 126 for
// one that cannot be executed.
func startFailureCode(err error) int {
	switch {
	case errors.Is(err, syscall.ENOENT):
		return 127
	case errors.Is(err, syscall.EACCES), errors.Is(err, syscall.ENOEXEC):
		return 126
	default:
		return 1
	}
}

func (a *app) cmdPlan(args []string) error {
	cmd, cleanup, err := a.command(args)
	if err != nil {
		return err
	}
	defer cleanup()

	strategy, actions, err := executor.Describe(cmd, a.caps)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "strategy: %s\n", strategy)
	for _, act := range actions {
		fmt.Fprintf(a.stdout, "  %s\n", act)
	}
	return nil
}

func (a *app) cmdStatus(arg string) error {
	raw, err := strconv.ParseUint(arg, 0, 32)
	if err != nil {
		return fmt.Errorf("raw status %q: %w", arg, err)
	}
	st := waitstatus.Decode(uint32(raw))
	fmt.Fprintf(a.stdout, "%s\n", st)
	fmt.Fprintf(a.stdout, "shell code: %d\n", st.ShellCode())
	return nil
}

func (a *app) cmdEnv() {
	release := environ.Guard()
	defer release()
	for _, kv := range environ.Environ() {
		fmt.Fprintln(a.stdout, kv)
	}
}

func (a *app) cmdClose(arg string) error {
	pid, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Errorf("pid %q: %w", arg, err)
	}
	if !spawn.RequestGracefulClose(pid) {
		return &exitError{code: 1, err: fmt.Errorf("no window owned by %d", pid)}
	}
	fmt.Fprintf(a.stdout, "close requested for %d\n", pid)
	return nil
}
