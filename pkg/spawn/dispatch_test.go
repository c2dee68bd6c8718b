package spawn

import (
	"errors"
	"syscall"
	"testing"
)

var noopHook = RegisterHook("test-noop", func() error { return nil })

func uid(n uint32) *uint32 { return &n }

func TestChoose(t *testing.T) {
	linux := Capabilities{NativeSpawn: true, SpawnChdir: true}
	darwin := Capabilities{NativeSpawn: true, ExecInPlace: true, SpawnChdir: true}
	bare := Capabilities{}
	noChdir := Capabilities{NativeSpawn: true}

	tests := []struct {
		name string
		req  Request
		caps Capabilities
		want Strategy
	}{
		{"plain on linux", Request{}, linux, FastPath},
		{"plain on darwin", Request{}, darwin, FastPath},
		{"plain without native spawn", Request{}, bare, ForkExec},
		{"pgid stays on fast path", Request{Setpgid: true}, linux, FastPath},
		{"dir with spawn chdir", Request{Dir: "/tmp"}, linux, FastPath},
		{"dir without spawn chdir", Request{Dir: "/tmp"}, noChdir, ForkExec},
		{"setsid on linux", Request{Setsid: true}, linux, ForkExec},
		{"setsid on darwin", Request{Setsid: true}, darwin, PreFork},
		{"uid on darwin", Request{Identity: &Identity{UID: uid(1)}}, darwin, PreFork},
		{"groups on linux", Request{Identity: &Identity{Groups: []uint32{1}}}, linux, ForkExec},
		{"empty identity is not privileged", Request{Identity: &Identity{}}, linux, FastPath},
		{"hook on linux", Request{PreExec: noopHook}, linux, ForkExec},
		{"hook beats pre-fork", Request{PreExec: noopHook, Setsid: true}, darwin, ForkExec},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Choose(&tt.req, tt.caps); got != tt.want {
				t.Errorf("Choose = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSpawn_ForcedStrategyMustExpressRequest(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"fast path with setsid", Request{Strategy: FastPath, Setsid: true}},
		{"fast path with identity", Request{Strategy: FastPath, Identity: &Identity{GID: uid(0)}}},
		{"fast path with hook", Request{Strategy: FastPath, PreExec: noopHook}},
		{"pre-fork with hook", Request{Strategy: PreFork, PreExec: noopHook}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.Path = "/bin/true"
			tt.req.Args = []string{"true"}
			_, err := New().Spawn(&tt.req)
			var serr *Error
			if !errors.As(err, &serr) {
				t.Fatalf("Spawn error = %v, want *Error", err)
			}
			if serr.Op != "dispatch" || !errors.Is(err, syscall.ENOTSUP) {
				t.Errorf("Spawn error = %v, want dispatch ENOTSUP", err)
			}
		})
	}
}

func TestParseStrategy(t *testing.T) {
	for in, want := range map[string]Strategy{
		"":          Auto,
		"auto":      Auto,
		"fast":      FastPath,
		"fast-path": FastPath,
		"PreFork":   PreFork,
		"forkexec":  ForkExec,
		"fork-exec": ForkExec,
	} {
		got, err := ParseStrategy(in)
		if err != nil || got != want {
			t.Errorf("ParseStrategy(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseStrategy("vfork"); err == nil {
		t.Error("ParseStrategy(vfork) succeeded")
	}
}
