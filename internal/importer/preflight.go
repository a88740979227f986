package importer

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// CheckDiskSpace fails when the filesystem holding path has less than
// minFreeMB megabytes available. Runs abort up front instead of dying halfway
// through a database write.
func CheckDiskSpace(path string, minFreeMB int) error {
	if minFreeMB <= 0 {
		return nil
	}
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return fmt.Errorf("statfs %s: %w", path, err)
	}
	freeMB := stat.Bavail * uint64(stat.Bsize) / (1024 * 1024)
	if freeMB < uint64(minFreeMB) {
		return fmt.Errorf("insufficient disk space on %s: %d MB free, %d MB required", path, freeMB, minFreeMB)
	}
	return nil
}
