package spawn

import "sync"

// Hook names a function registered with RegisterHook. The zero Hook means
// no hook.
type Hook struct {
	name string
}

// Name returns the registered name.
func (h Hook) Name() string { return h.name }

// IsZero reports whether h is the zero Hook.
func (h Hook) IsZero() bool { return h.name == "" }

var (
	hooksMu sync.RWMutex
	hooks   = map[string]func() error{}
)

// RegisterHook makes fn available as a pre-exec hook and returns its handle.
// It must be called during package initialisation (a package-level var or
// init), because the child that runs fn is a fresh copy of the program that
// resolves the hook by name. fn runs single-threaded-ish in that child with
// stdio already wired; returning an error aborts the spawn with its errno.
func RegisterHook(name string, fn func() error) Hook {
	if name == "" {
		panic("spawn: register hook with empty name")
	}
	if fn == nil {
		panic("spawn: register hook with nil func")
	}
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if _, exists := hooks[name]; exists {
		panic("spawn: duplicate register for hook " + name)
	}
	hooks[name] = fn
	return Hook{name: name}
}

func lookupHook(name string) (func() error, bool) {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	fn, ok := hooks[name]
	return fn, ok
}
