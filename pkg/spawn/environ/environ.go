// Package environ is the process-wide environment accessor used by the
// spawn engine.
//
// The environment is global, mutable state. Spawners hold the shared side
// of a lock from the moment they read the environment until the child
// exists; mutations made through this package take the exclusive side, so
// a child never observes half of an Update. Code that calls os.Setenv
// directly bypasses the lock and gets no such guarantee.
package environ

import (
	"os"
	"sync"
)

var mu sync.RWMutex

// Environ returns the current environment as KEY=VALUE strings. Treat the
// result as read-only and short-lived: it reflects the environment at the
// time of the call.
func Environ() []string {
	return os.Environ()
}

// Lock blocks mutations made through this package until Unlock. Holders of
// Lock do not exclude each other.
func Lock() { mu.RLock() }

// Unlock ends a critical section started by Lock.
func Unlock() { mu.RUnlock() }

// Guard acquires Lock and returns its release:
//
//	defer environ.Guard()()
func Guard() (release func()) {
	mu.RLock()
	var once sync.Once
	return func() { once.Do(mu.RUnlock) }
}

// Setenv sets one variable.
func Setenv(key, value string) error {
	mu.Lock()
	defer mu.Unlock()
	return os.Setenv(key, value)
}

// Unsetenv removes one variable.
func Unsetenv(key string) error {
	mu.Lock()
	defer mu.Unlock()
	return os.Unsetenv(key)
}

// Setter applies a change inside Update.
type Setter interface {
	Setenv(key, value string) error
	Unsetenv(key string) error
}

type osSetter struct{}

func (osSetter) Setenv(key, value string) error { return os.Setenv(key, value) }
func (osSetter) Unsetenv(key string) error      { return os.Unsetenv(key) }

// Update runs fn with the exclusive lock held, so every change fn makes
// becomes visible to spawners at once. Changes made before fn returns an
// error are not rolled back.
func Update(fn func(Setter) error) error {
	mu.Lock()
	defer mu.Unlock()
	return fn(osSetter{})
}

// Lookup returns the value of key in an environment list, scanning from the
// end so later duplicates win the way exec does.
func Lookup(env []string, key string) (string, bool) {
	for i := len(env) - 1; i >= 0; i-- {
		kv := env[i]
		if len(kv) > len(key) && kv[len(key)] == '=' && kv[:len(key)] == key {
			return kv[len(key)+1:], true
		}
	}
	return "", false
}
