//go:build windows

package safeops

import (
	"syscall"

	"github.com/camf-project/camf-go/internal/errors"
)

// Windows error codes for files held open by another process, commonly
// raised while antivirus or indexing services scan freshly written files.
const (
	errorAccessDenied     syscall.Errno = 5
	errorSharingViolation syscall.Errno = 32
	errorLockViolation    syscall.Errno = 33
)

func isTransientErrno(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}
	switch errno {
	case errorAccessDenied, errorSharingViolation, errorLockViolation:
		return true
	default:
		return false
	}
}
