package spawn

import (
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"testing"

	"golang.org/x/sys/unix"
)

// signalStatus returns the SigBlk and SigIgn lines of a child started
// with tc.
func signalStatus(t *testing.T, tc strategyCase) string {
	t.Helper()
	out, st := capture(t, newTestSpawner(), &Request{
		Path:     "/bin/sh",
		Args:     []string{"sh", "-c", "exec grep -E '^Sig(Blk|Ign):' /proc/self/status"},
		Strategy: tc.strategy,
		PreExec:  tc.hook,
	})
	if !st.Exited() || st.Code() != 0 {
		t.Fatalf("%s: status = %v", tc.name, st)
	}
	return out
}

func assertDefaultSignals(t *testing.T, name, status string) {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(status), "\n")
	if len(lines) != 2 {
		t.Fatalf("%s: status = %q", name, status)
	}
	for _, line := range lines {
		field, mask, _ := strings.Cut(line, ":")
		if strings.Trim(strings.TrimSpace(mask), "0") != "" {
			t.Errorf("%s: %s = %s, want empty", name, field, strings.TrimSpace(mask))
		}
	}
}

func TestSpawn_ResetsIgnoredSignals(t *testing.T) {
	signal.Ignore(syscall.SIGUSR1)
	t.Cleanup(func() {
		signal.Notify(make(chan os.Signal, 1), syscall.SIGUSR1)
		signal.Reset(syscall.SIGUSR1)
	})
	if !inheritsSignalState() {
		t.Fatal("ignored SIGUSR1 not noticed")
	}
	for _, tc := range everyStrategy {
		t.Run(tc.name, func(t *testing.T) {
			assertDefaultSignals(t, tc.name, signalStatus(t, tc))
		})
	}
}

// The mask belongs to the thread, so everything runs on this goroutine.
func TestSpawn_ClearsBlockedSignals(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var set, old unix.Sigset_t
	set.Val[0] |= 1 << (uint(unix.SIGUSR2) - 1)
	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &set, &old); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = unix.PthreadSigmask(unix.SIG_SETMASK, &old, nil) }()

	if !signalsBlocked() {
		t.Fatal("blocked SIGUSR2 not noticed")
	}
	for _, tc := range everyStrategy {
		assertDefaultSignals(t, tc.name, signalStatus(t, tc))
	}
}
