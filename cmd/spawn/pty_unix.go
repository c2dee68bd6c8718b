//go:build unix

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/creack/pty"
	"golang.org/x/term"

	"github.com/mbrock/spawn/internal/executor"
	"github.com/mbrock/spawn/pkg/spawn/waitstatus"
)

// runPTY runs cmd on a new pseudo-terminal and relays it to our stdio
// until the child exits.
func (a *app) runPTY(cmd *executor.Command) (waitstatus.Status, error) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		return waitstatus.Status{}, fmt.Errorf("open pty: %w", err)
	}
	defer ptmx.Close()

	if a.stdinFile != nil {
		stdinFd := int(a.stdinFile.Fd())
		if term.IsTerminal(stdinFd) {
			if cols, rows, err := term.GetSize(stdinFd); err == nil {
				_ = pty.Setsize(ptmx, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
			}
			oldState, err := term.MakeRaw(stdinFd)
			if err != nil {
				tty.Close()
				return waitstatus.Status{}, fmt.Errorf("setting raw mode: %w", err)
			}
			defer term.Restore(stdinFd, oldState)
		}
	}

	proc, err := a.exec.StartPTY(cmd, tty)
	tty.Close()
	if err != nil {
		return waitstatus.Status{}, &exitError{code: startFailureCode(err), err: err}
	}

	if a.stdinFile != nil {
		go io.Copy(ptmx, a.stdinFile)
	}
	relayed := make(chan struct{})
	go func() {
		io.Copy(a.stdout, ptmx)
		close(relayed)
	}()

	st, err := proc.Wait()
	if err != nil {
		return st, fmt.Errorf("waiting for %d: %w", proc.Pid(), err)
	}
	// Background jobs may keep the terminal open after the child exits.
	select {
	case <-relayed:
	case <-time.After(2 * time.Second):
	}
	return st, nil
}
