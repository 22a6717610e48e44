// FILE: storage_unix.go

//go:build unix

package linelog

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// diskFreeSpace retrieves available disk space for the given path
func diskFreeSpace(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmtErrorf("failed to stat log directory '%s': %w", path, err)
	}
	if !info.IsDir() {
		path = filepath.Dir(path)
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, fmtErrorf("failed to get disk stats for '%s': %w", path, err)
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}
