//go:build windows

package safeops

import (
	"fmt"
	"os"
)

// replaceFile moves src onto dst. Renaming onto an existing destination
// is not atomic on Windows, so an existing dst is first moved aside to a
// backup that is restored if any later step fails. The original file is
// never left missing or half-written.
func replaceFile(src, dst string) error {
	if _, err := os.Stat(dst); os.IsNotExist(err) {
		return os.Rename(src, dst)
	}

	backup := dst + ".bak"
	_ = os.Remove(backup)

	if err := os.Rename(dst, backup); err != nil {
		return fmt.Errorf("moving %s aside: %w", dst, err)
	}
	if err := os.Rename(src, dst); err != nil {
		if restoreErr := os.Rename(backup, dst); restoreErr != nil {
			return fmt.Errorf("replace failed (%w) and backup restore failed: %w", err, restoreErr)
		}
		return err
	}

	_ = os.Remove(backup)
	return nil
}
