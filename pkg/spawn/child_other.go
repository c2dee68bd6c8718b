//go:build !unix

package spawn

// Init reports false; no platform without fork uses a helper child.
func Init() bool { return false }
