// Package safeops provides filesystem mutation primitives that tolerate
// transient locking by other processes (antivirus scans, delayed handle
// release) on shared desktop filesystems.
package safeops

import (
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/camf-project/camf-go/internal/errors"
)

// RetryPolicy bounds the retry loop for transient failures. The delay
// grows linearly: attempt n waits n * Delay.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultPolicy matches the configuration defaults.
var DefaultPolicy = RetryPolicy{MaxAttempts: 5, Delay: 200 * time.Millisecond}

// Retry executes fn, retrying on transient permission or locking errors
// with linearly increasing delay up to the bounded attempt count.
// Non-transient errors fail immediately without retry.
func Retry(logger *slog.Logger, operation string, policy RetryPolicy, fn func() error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		delay := time.Duration(attempt) * policy.Delay
		if logger != nil {
			logger.Debug("transient failure, retrying",
				"operation", operation,
				"attempt", attempt,
				"delay", delay,
				"error", err)
		}
		time.Sleep(delay)
	}

	return errors.New(err).
		Component("safeops").
		Category(errors.CategoryRetry).
		Context("operation", operation).
		Context("attempts", attempts).
		Build()
}

// IsTransient reports whether err looks like a temporary sharing or
// locking condition worth retrying. Anything else (missing files, bad
// paths, disk full) fails immediately.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if os.IsPermission(err) || os.IsTimeout(err) {
		return true
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return isTransientErrno(pathErr.Err)
	}
	return isTransientErrno(err)
}
