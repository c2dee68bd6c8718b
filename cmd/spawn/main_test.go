//go:build unix

package main

import (
	"bytes"
	"context"
	"io"
	"slices"
	"strings"
	"testing"

	"github.com/mbrock/spawn/internal/executor"
	"github.com/mbrock/spawn/pkg/spawn"
)

type testApp struct {
	*app
	fake   *executor.FakeExecutor
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newTestApp(env map[string]string) *testApp {
	fake := executor.NewFakeExecutor()
	fake.RegisterCommand("greet", func(_ context.Context, _ io.Reader, stdout, _ io.Writer, args []string) int {
		io.WriteString(stdout, "hello\n")
		return 0
	})
	fake.RegisterCommand("fail", func(_ context.Context, _ io.Reader, _, _ io.Writer, _ []string) int {
		return 3
	})
	var stdout, stderr bytes.Buffer
	return &testApp{
		app: &app{
			stdout: &stdout,
			stderr: &stderr,
			exec:   fake,
			caps:   spawn.Capabilities{NativeSpawn: true, SpawnChdir: true},
			lookupEnv: func(k string) (string, bool) {
				v, ok := env[k]
				return v, ok
			},
		},
		fake:   fake,
		stdout: &stdout,
		stderr: &stderr,
	}
}

func TestRun_ExitCode(t *testing.T) {
	a := newTestApp(nil)
	if code := a.run([]string{"run", "--", "greet"}); code != 0 {
		t.Fatalf("exit code = %d, stderr %q", code, a.stderr)
	}

	a = newTestApp(nil)
	if code := a.run([]string{"run", "--", "fail"}); code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
	if !strings.Contains(a.stderr.String(), "exited 3") {
		t.Errorf("stderr = %q", a.stderr)
	}
}

func TestRun_NotFound(t *testing.T) {
	a := newTestApp(nil)
	if code := a.run([]string{"run", "--", "missing"}); code != 1 {
		t.Errorf("exit code = %d", code)
	}
	if !strings.Contains(a.stderr.String(), "spawn: ") {
		t.Errorf("stderr = %q", a.stderr)
	}
}

func TestRun_NoWait(t *testing.T) {
	a := newTestApp(nil)
	if code := a.run([]string{"run", "--no-wait", "--", "greet"}); code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if strings.TrimSpace(a.stdout.String()) != "1001" {
		t.Errorf("stdout = %q, want the fake pid", a.stdout)
	}
}

func TestRun_FlagsReachCommand(t *testing.T) {
	a := newTestApp(map[string]string{"SPAWN_STRATEGY": "forkexec"})
	code := a.run([]string{
		"run", "--clear-env", "-e", "A=1", "-e", "A=2", "--uid", "7", "--groups", "1,2",
		"--new-pgrp", "--dir", "/tmp", "--stderr", "close", "--stdin", "null", "--", "greet", "x",
	})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr %q", code, a.stderr)
	}
	started := a.fake.Started()
	if len(started) != 1 {
		t.Fatalf("started %d commands", len(started))
	}
	cmd := started[0]
	if !slices.Equal(cmd.Env, []string{"A=2"}) {
		t.Errorf("Env = %v", cmd.Env)
	}
	if cmd.Identity == nil || *cmd.Identity.UID != 7 || cmd.Identity.GID != nil || !slices.Equal(cmd.Identity.Groups, []uint32{1, 2}) {
		t.Errorf("Identity = %+v", cmd.Identity)
	}
	if !cmd.Setpgid || cmd.Pgid != 0 || cmd.Dir != "/tmp" {
		t.Errorf("command = %+v", cmd)
	}
	if cmd.Strategy != spawn.ForkExec {
		t.Errorf("Strategy = %v", cmd.Strategy)
	}
	if !cmd.Closed[2] || cmd.Stdin == nil {
		t.Errorf("streams: closed %v stdin %v", cmd.Closed, cmd.Stdin)
	}
}

func TestRun_BadStrategy(t *testing.T) {
	a := newTestApp(nil)
	if code := a.run([]string{"run", "--strategy", "vfork", "--", "greet"}); code != 1 {
		t.Errorf("exit code = %d", code)
	}
}

func TestPlan(t *testing.T) {
	a := newTestApp(nil)
	code := a.run([]string{"plan", "--setsid", "--stdout", "close", "--", "/bin/true"})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr %q", code, a.stderr)
	}
	want := "strategy: fork-exec\n  close(1)\n"
	if a.stdout.String() != want {
		t.Errorf("stdout = %q, want %q", a.stdout, want)
	}
}

func TestStatus(t *testing.T) {
	a := newTestApp(nil)
	if code := a.run([]string{"status", "0x0900"}); code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if a.stdout.String() != "exited 9\nshell code: 9\n" {
		t.Errorf("stdout = %q", a.stdout)
	}

	a = newTestApp(nil)
	a.run([]string{"status", "9"})
	if !strings.HasPrefix(a.stdout.String(), "signaled 9") {
		t.Errorf("stdout = %q", a.stdout)
	}
}

func TestEnv(t *testing.T) {
	t.Setenv("SPAWN_CLI_TEST", "yes")
	a := newTestApp(nil)
	a.run([]string{"env"})
	if !strings.Contains(a.stdout.String(), "SPAWN_CLI_TEST=yes\n") {
		t.Errorf("env output lacks the test variable")
	}
}

func TestUsage(t *testing.T) {
	for _, args := range [][]string{{}, {"run"}, {"status"}, {"bogus"}, {"--nope"}} {
		a := newTestApp(nil)
		if code := a.run(args); code != 2 {
			t.Errorf("run(%q) = %d, want 2", args, code)
		}
	}
}

func TestClose_NotWindows(t *testing.T) {
	a := newTestApp(nil)
	if code := a.run([]string{"close", "1"}); code != 1 {
		t.Errorf("exit code = %d", code)
	}
}

func TestMergeEnv(t *testing.T) {
	got := mergeEnv([]string{"A=1", "B=2"}, []string{"B=3", "C=4"})
	if !slices.Equal(got, []string{"A=1", "B=3", "C=4"}) {
		t.Errorf("mergeEnv = %v", got)
	}
}

func TestRun_PTY(t *testing.T) {
	a := newTestApp(nil)
	if code := a.run([]string{"run", "--pty", "--", "greet"}); code != 0 {
		t.Fatalf("exit code = %d, stderr %q", code, a.stderr)
	}
	if !strings.Contains(a.stdout.String(), "hello") {
		t.Errorf("stdout = %q", a.stdout)
	}
	started := a.fake.Started()
	if len(started) != 1 || !started[0].Setsid {
		t.Errorf("pty command not started as session leader: %+v", started)
	}
}
