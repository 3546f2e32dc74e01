package safeops

import (
	"log/slog"
	"os"
	"runtime"
)

// RenameDir moves a directory with retry on transient locking errors.
// Before each retry a garbage collection is requested to encourage prompt
// release of stale file handles that can block the rename on platforms
// with mandatory file locking.
func RenameDir(logger *slog.Logger, oldPath, newPath string, policy RetryPolicy) error {
	first := true
	return Retry(logger, "rename_dir", policy, func() error {
		if !first {
			runtime.GC()
		}
		first = false
		return os.Rename(oldPath, newPath)
	})
}

// RemoveTree deletes a directory subtree with retry on transient
// permission errors, e.g. a file briefly held open by another process.
func RemoveTree(logger *slog.Logger, path string, policy RetryPolicy) error {
	return Retry(logger, "remove_tree", policy, func() error {
		return os.RemoveAll(path)
	})
}
