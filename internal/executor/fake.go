//go:build unix

package executor

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"syscall"

	"go.uber.org/atomic"

	"github.com/mbrock/spawn/pkg/spawn/waitstatus"
)

// FakeCommand is a function that simulates a command execution.
// It receives the command arguments, stdin, stdout, stderr and should return an exit code.
// The context is cancelled when the process should be killed.
type FakeCommand func(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) int

// FakeExecutor is a test implementation of Executor that runs registered fake commands.
type FakeExecutor struct {
	mu       sync.RWMutex
	commands map[string]FakeCommand
	started  []*Command
	nextPid  atomic.Int32
}

// NewFakeExecutor creates a new FakeExecutor.
func NewFakeExecutor() *FakeExecutor {
	e := &FakeExecutor{
		commands: make(map[string]FakeCommand),
	}
	e.nextPid.Store(1000)
	return e
}

// RegisterCommand registers a fake command implementation.
// The name should match the first element of the command slice.
func (e *FakeExecutor) RegisterCommand(name string, handler FakeCommand) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands[name] = handler
}

// Started returns the commands passed to Start, in order.
func (e *FakeExecutor) Started() []*Command {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]*Command(nil), e.started...)
}

// fakeProcess implements Process for FakeExecutor.
type fakeProcess struct {
	pid      int
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
	exitCode int
	killedBy syscall.Signal
}

func (p *fakeProcess) Pid() int { return p.pid }

func (p *fakeProcess) Wait() (waitstatus.Status, error) {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.killedBy != 0 {
		return waitstatus.SignaledWith(p.killedBy), nil
	}
	return waitstatus.ExitedWith(p.exitCode), nil
}

func (p *fakeProcess) Kill() error {
	return p.Signal(syscall.SIGKILL)
}

func (p *fakeProcess) Signal(sig os.Signal) error {
	if sig == syscall.SIGTERM || sig == syscall.SIGKILL {
		p.mu.Lock()
		if p.killedBy == 0 {
			p.killedBy = sig.(syscall.Signal)
		}
		p.mu.Unlock()
		p.cancel()
	}
	return nil
}

// dupFile duplicates f, since the caller may close it after Start returns
// but the handler goroutine needs to keep using it.
func dupFile(f *os.File, name string) (*os.File, error) {
	fd, err := syscall.Dup(int(f.Fd()))
	if err != nil {
		return nil, fmt.Errorf("dup %s: %w", name, err)
	}
	return os.NewFile(uintptr(fd), name), nil
}

// Start implements Executor.Start for FakeExecutor. Inherited and closed
// streams read as empty and discard writes.
func (e *FakeExecutor) Start(cmd *Command) (Process, error) {
	if len(cmd.Args) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	e.mu.Lock()
	handler, ok := e.commands[cmd.Args[0]]
	if ok {
		e.started = append(e.started, cmd)
	}
	e.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("executable %q not found", cmd.Args[0])
	}

	var (
		owned  []*os.File
		stdin  io.Reader = eofReader{}
		stdout io.Writer = io.Discard
		stderr io.Writer = io.Discard
	)
	closeOwned := func() {
		for _, f := range owned {
			f.Close()
		}
	}

	if cmd.Stdin != nil && !cmd.Closed[0] {
		stdin = cmd.Stdin
		if f, ok := cmd.Stdin.(*os.File); ok {
			dup, err := dupFile(f, "stdin")
			if err != nil {
				return nil, err
			}
			owned = append(owned, dup)
			stdin = dup
		}
	}
	if cmd.Stdout != nil && !cmd.Closed[1] {
		stdout = cmd.Stdout
		if f, ok := cmd.Stdout.(*os.File); ok {
			dup, err := dupFile(f, "stdout")
			if err != nil {
				closeOwned()
				return nil, err
			}
			owned = append(owned, dup)
			stdout = dup
		}
	}
	if cmd.Stderr != nil && !cmd.Closed[2] {
		stderr = cmd.Stderr
		if f, ok := cmd.Stderr.(*os.File); ok {
			dup, err := dupFile(f, "stderr")
			if err != nil {
				closeOwned()
				return nil, err
			}
			owned = append(owned, dup)
			stderr = dup
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	proc := &fakeProcess{
		pid:    int(e.nextPid.Inc()),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer closeOwned()

		exitCode := handler(ctx, stdin, stdout, stderr, cmd.Args)
		proc.mu.Lock()
		proc.exitCode = exitCode
		proc.mu.Unlock()
		cancel()
		close(proc.done)
	}()

	return proc, nil
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }

// StartPTY implements Executor.StartPTY for FakeExecutor.
// For testing, we use the slave file directly for I/O since we don't have a real PTY.
func (e *FakeExecutor) StartPTY(cmd *Command, slave *os.File) (Process, error) {
	return e.Start(ptyCommand(cmd, slave))
}
