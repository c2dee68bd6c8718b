//go:build !unix

package executor

import (
	"errors"
	"os"
)

// StartPTY implements Executor.StartPTY; there are no PTYs here.
func (e *SpawnExecutor) StartPTY(*Command, *os.File) (Process, error) {
	return nil, errors.New("pty: unsupported on this platform")
}
