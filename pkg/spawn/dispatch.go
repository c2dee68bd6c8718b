package spawn

import (
	"fmt"
	"strings"
	"syscall"
)

// Strategy selects how a child is created.
type Strategy uint8

const (
	// Auto lets the dispatcher pick.
	Auto Strategy = iota
	// FastPath uses the runtime's atomic create-and-exec primitive.
	FastPath
	// PreFork uses a helper that execs in place after changing identity.
	PreFork
	// ForkExec applies every directive in the child and execs directly.
	ForkExec
)

func (s Strategy) String() string {
	switch s {
	case Auto:
		return "auto"
	case FastPath:
		return "fast-path"
	case PreFork:
		return "pre-fork"
	case ForkExec:
		return "fork-exec"
	default:
		return fmt.Sprintf("strategy(%d)", uint8(s))
	}
}

// ParseStrategy accepts the String forms and the short names fast,
// prefork and forkexec.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return Auto, nil
	case "fast", "fast-path", "fastpath":
		return FastPath, nil
	case "prefork", "pre-fork":
		return PreFork, nil
	case "forkexec", "fork-exec":
		return ForkExec, nil
	}
	return Auto, fmt.Errorf("unknown strategy %q", s)
}

// Capabilities describes what the platform's primitives can do.
type Capabilities struct {
	// NativeSpawn: an atomic create-and-exec primitive exists.
	NativeSpawn bool
	// ExecInPlace: the primitive can replace the calling process image
	// without creating a new process.
	ExecInPlace bool
	// SpawnChdir: the primitive can change the working directory.
	SpawnChdir bool
}

// DefaultCapabilities returns the capabilities of the running platform.
func DefaultCapabilities() Capabilities {
	return platformCapabilities
}

// Choose picks the strategy for req under caps. It does not look at
// req.Strategy.
//
// A hooked request always goes to ForkExec, the only strategy that runs
// caller code in the child. Otherwise identity or session changes go to
// PreFork when the platform can exec in place; plain requests go to
// FastPath when the primitive can express them; the rest go to ForkExec.
func Choose(req *Request, caps Capabilities) Strategy {
	if !req.PreExec.IsZero() {
		return ForkExec
	}
	if req.privileged() {
		if caps.ExecInPlace {
			return PreFork
		}
		return ForkExec
	}
	if caps.NativeSpawn && (req.Dir == "" || caps.SpawnChdir) {
		return FastPath
	}
	return ForkExec
}

// expressible reports whether strategy s can carry out req. Forcing a
// strategy skips the capability preferences but not this check.
func expressible(s Strategy, req *Request, caps Capabilities) bool {
	switch s {
	case FastPath:
		return !req.privileged() && req.PreExec.IsZero() && (req.Dir == "" || caps.SpawnChdir)
	case PreFork:
		return req.PreExec.IsZero()
	case ForkExec:
		return true
	}
	return false
}

// strategyFunc creates the child for one strategy. env is the resolved
// environment; the environment lock is held for the duration of the call.
type strategyFunc func(sp *Spawner, req *Request, env []string) (int, error)

var strategies = map[Strategy]strategyFunc{}

// register is called from init in the platform files.
func register(s Strategy, fn strategyFunc) {
	if _, exists := strategies[s]; exists {
		panic("spawn: duplicate register for strategy " + s.String())
	}
	strategies[s] = fn
}

func (sp *Spawner) choose(req *Request) (Strategy, error) {
	s := req.Strategy
	if s == Auto {
		s = Choose(req, sp.Capabilities)
	} else if !expressible(s, req, sp.Capabilities) {
		return s, &Error{Path: req.Path, Op: "dispatch", Strategy: s, Err: syscall.ENOTSUP}
	}
	if _, ok := strategies[s]; !ok {
		return s, &Error{Path: req.Path, Op: "dispatch", Strategy: s, Err: syscall.ENOTSUP}
	}
	return s, nil
}
