//go:build unix

package spawn

import (
	"os"
	"os/signal"
	"syscall"
)

// maxSignal bounds the scan; os/signal rejects numbers the platform lacks.
const maxSignal = 65

func ignoredSignals() []os.Signal {
	var sigs []os.Signal
	for s := syscall.Signal(1); s < maxSignal; s++ {
		if signal.Ignored(s) {
			sigs = append(sigs, s)
		}
	}
	return sigs
}

// inheritsSignalState reports whether a child started by the runtime would
// keep ignored signals or blocked signals from this process. The runtime
// resets only the handlers it installed itself.
func inheritsSignalState() bool {
	return len(ignoredSignals()) > 0 || signalsBlocked()
}

// resetSignals runs in the helper right before exec. Ignored signals get a
// handler, which exec turns back into the default action; then the mask is
// cleared.
func resetSignals() error {
	if sigs := ignoredSignals(); len(sigs) > 0 {
		signal.Notify(make(chan os.Signal, 1), sigs...)
	}
	return resetSignalMask()
}
