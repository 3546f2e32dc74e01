//go:build !windows

package safeops

import (
	"syscall"

	"github.com/camf-project/camf-go/internal/errors"
)

// isTransientErrno reports whether err carries an errno that indicates a
// temporarily busy or locked file rather than a hard failure.
func isTransientErrno(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}
	switch errno {
	case syscall.EACCES, syscall.EBUSY, syscall.EAGAIN, syscall.ETXTBSY:
		return true
	default:
		return false
	}
}
