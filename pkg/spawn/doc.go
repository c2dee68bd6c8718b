// Package spawn creates OS processes from a data-only Request and reports
// either the new pid or the OS error code that stopped it.
//
// Three strategies exist and the dispatcher picks one per request:
//
//   - FastPath hands the whole request to the runtime's atomic
//     create-and-exec primitive (syscall.ForkExec). No caller code runs in
//     the child.
//   - PreFork starts a helper child that changes identity and session, then
//     replaces itself with the target program (exec in place, same pid).
//     Failures before exec travel back over a private pipe.
//   - ForkExec applies every directive in the child, including a registered
//     pre-exec Hook, and executes the target directly.
//
// # Helper child
//
// PreFork and hooked ForkExec requests re-execute the current binary with a
// marker argv[0]. Programs using them must call Init first thing in main
// (or TestMain):
//
//	func main() {
//		if spawn.Init() {
//			return
//		}
//		...
//	}
//
// Init never returns in the helper: it either becomes the target program or
// exits with status 127 after reporting the failure. A helper that exits
// without Init taking over fails the spawn with ENOEXEC once it is gone.
//
// The helper runs under the caller's environment; Request.Env reaches only
// the target.
//
// # Signals
//
// Children start with every signal at its default action and an empty
// mask. The runtime's primitive only resets the handlers it installed, so
// while this process ignores or blocks a signal, FastPath and ForkExec go
// through the helper as well.
//
// # Errors
//
// Every failure is an *Error that unwraps to a syscall.Errno, so
// errors.Is(err, syscall.ENOENT) works regardless of strategy.
//
// # Platform Notes
//
// On windows only FastPath exists; identity, session and hook directives
// fail with ENOTSUP. RequestGracefulClose is meaningful only on windows.
package spawn
