//go:build unix

package spawn

func init() {
	register(PreFork, spawnPreFork)
}

// spawnPreFork runs the helper in exec-in-place mode. The helper inherits
// the final stdio table directly, so it only has identity, session,
// directory and group left to do before exec.
func spawnPreFork(sp *Spawner, req *Request, env []string) (int, error) {
	return sp.runHelper(req, env, modeExecInPlace)
}
