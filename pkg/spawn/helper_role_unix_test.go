//go:build unix

package spawn

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

func runTestHelper(role string) int {
	switch role {
	case "report":
		sid, _ := unix.Getsid(0)
		fmt.Printf("pid=%d pgid=%d sid=%d\n", os.Getpid(), unix.Getpgrp(), sid)
		return 0
	}
	fmt.Fprintf(os.Stderr, "unknown test helper role %q\n", role)
	return 2
}
