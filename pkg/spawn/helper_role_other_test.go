//go:build !unix

package spawn

func runTestHelper(string) int { return 2 }
