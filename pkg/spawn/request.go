package spawn

import (
	"errors"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/mbrock/spawn/pkg/spawn/fdplan"
)

// Request describes one spawn attempt. It is not modified by Spawn.
type Request struct {
	// Path is the executable; it is not searched for in $PATH.
	Path string
	// Args is the argument vector, Args[0] conventionally the program name.
	Args []string
	// Env holds KEY=VALUE pairs. nil inherits the current environment.
	Env []string
	// Dir is the working directory; empty inherits.
	Dir string

	// Identity changes user, group and supplementary groups.
	Identity *Identity

	// Setsid creates a new session with the child as leader.
	Setsid bool
	// Setpgid moves the child into process group Pgid, or into a new group
	// led by the child when Pgid is 0. It cannot be combined with Setsid.
	Setpgid bool
	Pgid    int

	// Stdio wires the standard streams. The zero table inherits them.
	Stdio fdplan.Table

	// PreExec runs in the child after every other directive, just before
	// exec. Only ForkExec can honour it.
	PreExec Hook

	// Strategy forces a strategy; Auto lets the dispatcher choose.
	Strategy Strategy
}

// Identity is a partial or complete credential for the child. A nil UID or
// GID keeps the caller's real id.
type Identity struct {
	UID    *uint32
	GID    *uint32
	Groups []uint32
}

func (id *Identity) empty() bool {
	return id == nil || (id.UID == nil && id.GID == nil && len(id.Groups) == 0)
}

// privileged reports whether the request needs a directive the atomic
// primitive cannot express.
func (r *Request) privileged() bool {
	return !r.Identity.empty() || r.Setsid
}

// Validate reports every problem with r at once.
func (r *Request) Validate() error {
	var result *multierror.Error
	add := func(msg string) { result = multierror.Append(result, errors.New(msg)) }

	if r.Path == "" {
		add("empty executable path")
	}
	if len(r.Args) == 0 {
		add("empty argument vector")
	}
	if strings.IndexByte(r.Path, 0) >= 0 {
		add("executable path contains NUL")
	}
	if strings.IndexByte(r.Dir, 0) >= 0 {
		add("working directory contains NUL")
	}
	for _, a := range r.Args {
		if strings.IndexByte(a, 0) >= 0 {
			add("argument contains NUL")
			break
		}
	}
	for _, kv := range r.Env {
		if strings.IndexByte(kv, 0) >= 0 {
			add("environment entry contains NUL")
			break
		}
	}
	if r.Setsid && r.Setpgid {
		add("setsid and setpgid are mutually exclusive")
	}
	if r.Pgid < 0 {
		add("negative process group id")
	}
	if r.Pgid != 0 && !r.Setpgid {
		add("pgid given without setpgid")
	}
	if err := r.Stdio.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if !r.PreExec.IsZero() {
		if _, ok := lookupHook(r.PreExec.name); !ok {
			add("pre-exec hook " + r.PreExec.name + " is not registered")
		}
	}
	return result.ErrorOrNil()
}
