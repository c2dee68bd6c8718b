//go:build unix && !linux && !darwin

package spawn

var platformCapabilities = Capabilities{}
