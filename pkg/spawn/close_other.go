//go:build !windows

package spawn

// RequestGracefulClose has no meaning without a window system that owns
// processes; it always reports false.
func RequestGracefulClose(pid int) bool { return false }
