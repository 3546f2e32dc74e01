//go:build !windows

package safeops

import "os"

// replaceFile moves src onto dst. POSIX rename atomically replaces an
// existing destination.
func replaceFile(src, dst string) error {
	return os.Rename(src, dst)
}
