package spawn

import (
	"errors"
	"log/slog"
	"os"
	"syscall"

	"go.uber.org/atomic"

	"github.com/mbrock/spawn/pkg/spawn/environ"
)

// Spawner runs requests. The zero value is not usable; use New.
type Spawner struct {
	// Capabilities steer the dispatcher. Tests override them to force
	// strategies the platform would not pick.
	Capabilities Capabilities
	// Self is the executable started as helper child. Empty means
	// os.Executable.
	Self string
	// Logger receives debug records. nil means slog.Default.
	Logger *slog.Logger

	spawned [ForkExec + 1]atomic.Uint64
	failed  [ForkExec + 1]atomic.Uint64
}

// New returns a Spawner for the running platform.
func New() *Spawner {
	return &Spawner{Capabilities: DefaultCapabilities()}
}

// Default is the Spawner used by the package-level Spawn.
var Default = New()

// Spawn runs req with the Default spawner.
func Spawn(req *Request) (int, error) {
	return Default.Spawn(req)
}

// Spawn creates the child described by req and returns its pid. The caller
// owns the child and must wait for it. On failure no child remains.
//
// Caller descriptors named in req.Stdio are marked close-on-exec but never
// closed.
func (sp *Spawner) Spawn(req *Request) (int, error) {
	log := sp.logger()

	if err := req.Validate(); err != nil {
		return 0, &Error{Path: req.Path, Op: "validate", Err: syscall.EINVAL, Detail: err}
	}

	strategy, err := sp.choose(req)
	if err != nil {
		log.Debug("spawn rejected", "path", req.Path, "strategy", strategy, "error", err)
		return 0, err
	}
	run := strategies[strategy]

	if err := protectDescriptors(req); err != nil {
		sp.failed[strategy].Inc()
		return 0, &Error{Path: req.Path, Op: "cloexec", Strategy: strategy, Err: Errno(err)}
	}

	release := environ.Guard()
	env := req.Env
	if env == nil {
		env = environ.Environ()
	}
	pid, err := run(sp, req, env)
	release()

	if err != nil {
		sp.failed[strategy].Inc()
		var serr *Error
		if errors.As(err, &serr) {
			serr.Path = req.Path
			serr.Strategy = strategy
		} else {
			err = &Error{Path: req.Path, Op: "spawn", Strategy: strategy, Err: Errno(err)}
		}
		log.Debug("spawn failed", "path", req.Path, "strategy", strategy, "error", err)
		return 0, err
	}

	sp.spawned[strategy].Inc()
	log.Debug("spawned", "path", req.Path, "strategy", strategy, "pid", pid)
	return pid, nil
}

// Stats counts spawns per strategy.
type Stats struct {
	Spawned map[Strategy]uint64
	Failed  map[Strategy]uint64
}

// Stats returns the counts since the Spawner was created. Requests rejected
// before a strategy was chosen are not counted.
func (sp *Spawner) Stats() Stats {
	st := Stats{Spawned: map[Strategy]uint64{}, Failed: map[Strategy]uint64{}}
	for s := FastPath; s <= ForkExec; s++ {
		if n := sp.spawned[s].Load(); n > 0 {
			st.Spawned[s] = n
		}
		if n := sp.failed[s].Load(); n > 0 {
			st.Failed[s] = n
		}
	}
	return st
}

func (sp *Spawner) logger() *slog.Logger {
	if sp.Logger != nil {
		return sp.Logger
	}
	return slog.Default()
}

func (sp *Spawner) self() (string, error) {
	if sp.Self != "" {
		return sp.Self, nil
	}
	return os.Executable()
}
