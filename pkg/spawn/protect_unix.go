//go:build unix

package spawn

import "github.com/mbrock/spawn/pkg/spawn/fdplan"

// protectDescriptors marks every caller descriptor above 2 named by the
// request close-on-exec, so no child of any strategy inherits it unless the
// plan dups it onto a standard stream.
func protectDescriptors(req *Request) error {
	for _, fd := range req.Stdio.Descriptors() {
		if fd <= 2 {
			continue
		}
		if err := fdplan.SetCloseOnExec(fd); err != nil {
			return err
		}
	}
	return nil
}
