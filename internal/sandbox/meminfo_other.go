//go:build !linux

package sandbox

import "fmt"

// totalSystemMemoryMB has no portable implementation outside Linux;
// the resource-precondition check is a Linux-only guarantee per
// spec.md §4.9 ("platform-permitting").
func totalSystemMemoryMB() (int64, error) {
	return 0, fmt.Errorf("resource precondition check is only supported on linux")
}
