//go:build unix

package executor

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/mbrock/spawn/pkg/spawn"
	"github.com/mbrock/spawn/pkg/spawn/environ"
)

// controllingTerminal runs after setsid and the descriptor plan, so stdin
// is already the slave.
var controllingTerminal = spawn.RegisterHook("executor.controlling-terminal", func() error {
	return unix.IoctlSetInt(0, unix.TIOCSCTTY, 0)
})

// ptyCommand rewrites cmd to run as session leader on slave.
func ptyCommand(cmd *Command, slave *os.File) *Command {
	c := *cmd
	c.Stdin, c.Stdout, c.Stderr = slave, slave, slave
	c.Closed = [3]bool{}
	c.Setsid, c.Setpgid, c.Pgid = true, false, 0
	c.PreExec = controllingTerminal
	if c.Env == nil {
		c.Env = os.Environ()
	}
	if _, ok := environ.Lookup(c.Env, "TERM"); !ok {
		c.Env = append(c.Env, "TERM=xterm-256color")
	}
	return &c
}

// StartPTY implements Executor.StartPTY. The program must call spawn.Init,
// since acquiring the terminal runs as a pre-exec hook.
func (e *SpawnExecutor) StartPTY(cmd *Command, slave *os.File) (Process, error) {
	return e.Start(ptyCommand(cmd, slave))
}
