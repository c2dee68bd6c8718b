//go:build !unix

package main

import (
	"errors"

	"github.com/mbrock/spawn/internal/executor"
	"github.com/mbrock/spawn/pkg/spawn/waitstatus"
)

func (a *app) runPTY(*executor.Command) (waitstatus.Status, error) {
	return waitstatus.Status{}, errors.New("--pty is not supported on this platform")
}
