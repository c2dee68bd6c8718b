// Package executor starts commands through the spawn engine and gives
// back something to wait on.
package executor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mbrock/spawn/pkg/spawn"
	"github.com/mbrock/spawn/pkg/spawn/fdplan"
	"github.com/mbrock/spawn/pkg/spawn/waitstatus"
)

// Process represents a started process.
type Process interface {
	Pid() int
	// Wait blocks until the process exits and its output has been copied.
	Wait() (waitstatus.Status, error)
	Signal(sig os.Signal) error
	// Kill sends SIGKILL to the process.
	Kill() error
}

// Command describes what to start.
type Command struct {
	// Args is the argument vector; Args[0] is looked up in $PATH unless
	// Path is set.
	Args []string
	Path string
	// Env nil inherits the environment.
	Env []string
	Dir string

	Identity *spawn.Identity
	Setsid   bool
	Setpgid  bool
	Pgid     int
	Strategy spawn.Strategy
	// PreExec runs in the child just before exec.
	PreExec spawn.Hook

	// nil streams are inherited. An *os.File is handed to the child as is;
	// any other reader or writer is connected through a pipe.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// Closed closes streams in the child, overriding the fields above.
	Closed [3]bool
}

// Executor starts processes.
type Executor interface {
	// Start starts a command with the streams it names.
	Start(cmd *Command) (Process, error)

	// StartPTY starts a command connected to a PTY slave.
	// The slave file is used for stdin/stdout/stderr and the process
	// becomes the session leader with the PTY as its controlling terminal.
	StartPTY(cmd *Command, slave *os.File) (Process, error)
}

// SpawnExecutor is the Executor backed by a spawn.Spawner.
type SpawnExecutor struct {
	Spawner *spawn.Spawner
}

// Default returns the SpawnExecutor over spawn.Default.
func Default() Executor {
	return &SpawnExecutor{Spawner: spawn.Default}
}

type spawnProcess struct {
	pid    int
	proc   *os.Process
	copies *errgroup.Group
}

func (p *spawnProcess) Pid() int { return p.pid }

func (p *spawnProcess) Wait() (waitstatus.Status, error) {
	ps, err := p.proc.Wait()
	if err != nil {
		return waitstatus.Status{}, err
	}
	if err := p.copies.Wait(); err != nil {
		return waitstatus.FromProcessState(ps), fmt.Errorf("copy output: %w", err)
	}
	return waitstatus.FromProcessState(ps), nil
}

func (p *spawnProcess) Signal(sig os.Signal) error { return p.proc.Signal(sig) }

func (p *spawnProcess) Kill() error { return p.proc.Kill() }

// pipes holds the engine-side plumbing for streams that are not files.
type pipes struct {
	childEnds  []*os.File
	parentEnds []*os.File
	copies     []func() error
}

func (p *pipes) closeChildEnds() {
	for _, f := range p.childEnds {
		f.Close()
	}
}

func (p *pipes) closeParentEnds() {
	for _, f := range p.parentEnds {
		f.Close()
	}
}

// Start implements Executor.Start.
func (e *SpawnExecutor) Start(cmd *Command) (Process, error) {
	req, pp, err := request(cmd, true)
	if err != nil {
		return nil, err
	}

	sp := e.Spawner
	if sp == nil {
		sp = spawn.Default
	}
	pid, err := sp.Spawn(req)
	pp.closeChildEnds()
	if err != nil {
		pp.closeParentEnds()
		return nil, err
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		pp.closeParentEnds()
		return nil, fmt.Errorf("find process %d: %w", pid, err)
	}
	copies := new(errgroup.Group)
	for _, fn := range pp.copies {
		copies.Go(fn)
	}
	return &spawnProcess{pid: pid, proc: proc, copies: copies}, nil
}

// Describe returns the strategy and descriptor plan Start would use under
// caps, without starting anything. Every stream must be inherited, closed
// or an *os.File.
func Describe(cmd *Command, caps spawn.Capabilities) (spawn.Strategy, []fdplan.Action, error) {
	req, _, err := request(cmd, false)
	if err != nil {
		return spawn.Auto, nil, err
	}
	if err := req.Validate(); err != nil {
		return spawn.Auto, nil, err
	}
	strategy := req.Strategy
	if strategy == spawn.Auto {
		strategy = spawn.Choose(req, caps)
	}
	actions, err := fdplan.Plan(req.Stdio)
	return strategy, actions, err
}

func request(cmd *Command, withPipes bool) (*spawn.Request, *pipes, error) {
	if len(cmd.Args) == 0 {
		return nil, nil, errors.New("empty command")
	}
	path := cmd.Path
	if path == "" {
		var err error
		if path, err = exec.LookPath(cmd.Args[0]); err != nil {
			return nil, nil, fmt.Errorf("executable %q not found: %w", cmd.Args[0], err)
		}
	}

	pp := &pipes{}
	// Stderr writing to the same writer as Stdout shares its pipe, so one
	// copier owns the writer.
	var stdoutPipe *os.File
	stdio := fdplan.NewTable()
	streams := [3]any{cmd.Stdin, cmd.Stdout, cmd.Stderr}
	for s := fdplan.Stdin; s <= fdplan.Stderr; s++ {
		if cmd.Closed[s] {
			stdio.Bind(s, fdplan.Closed, fdplan.Unset)
			continue
		}
		switch v := streams[s].(type) {
		case nil:
		case *os.File:
			stdio.Bind(s, int(v.Fd()), fdplan.Unset)
		default:
			if !withPipes {
				return nil, nil, fmt.Errorf("%s: %T needs a pipe", s, v)
			}
			if s == fdplan.Stderr && stdoutPipe != nil && sameWriter(v, cmd.Stdout) {
				stdio.Bind(s, int(stdoutPipe.Fd()), fdplan.Unset)
				continue
			}
			child, parent, err := pp.connect(s, v)
			if err != nil {
				pp.closeChildEnds()
				pp.closeParentEnds()
				return nil, nil, err
			}
			stdio.Bind(s, int(child.Fd()), int(parent.Fd()))
			if s == fdplan.Stdout {
				stdoutPipe = child
			}
		}
	}

	return &spawn.Request{
		Path:     path,
		Args:     cmd.Args,
		Env:      cmd.Env,
		Dir:      cmd.Dir,
		Identity: cmd.Identity,
		Setsid:   cmd.Setsid,
		Setpgid:  cmd.Setpgid,
		Pgid:     cmd.Pgid,
		Stdio:    stdio,
		PreExec:  cmd.PreExec,
		Strategy: cmd.Strategy,
	}, pp, nil
}

// sameWriter compares two writers the way os/exec does; values of
// uncomparable types are never the same.
func sameWriter(a, b any) (same bool) {
	defer func() {
		_ = recover()
	}()
	return a == b
}

func (p *pipes) connect(s fdplan.Stream, v any) (child, parent *os.File, err error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, fmt.Errorf("%s pipe: %w", s, err)
	}
	if s == fdplan.Stdin {
		src := v.(io.Reader)
		p.copies = append(p.copies, func() error {
			defer w.Close()
			_, err := io.Copy(w, src)
			if errors.Is(err, syscall.EPIPE) {
				return nil
			}
			return err
		})
		child, parent = r, w
	} else {
		dst := v.(io.Writer)
		p.copies = append(p.copies, func() error {
			defer r.Close()
			_, err := io.Copy(dst, r)
			return err
		})
		child, parent = w, r
	}
	p.childEnds = append(p.childEnds, child)
	p.parentEnds = append(p.parentEnds, parent)
	return child, parent, nil
}
