//go:build !windows

package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/unix"
)

// isMountPoint reports whether path is a mount point by comparing its device
// ID with its parent's. The root path is its own parent and always a mount.
func isMountPoint(path string) (bool, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		return false, err
	}

	parent := filepath.Dir(path)
	parentInfo, err := os.Stat(parent)
	if err != nil {
		return false, err
	}

	stat, ok := fileInfo.Sys().(*syscall.Stat_t)
	if !ok {
		return false, fmt.Errorf("unsupported platform for syscall.Stat_t")
	}

	parentStat, ok := parentInfo.Sys().(*syscall.Stat_t)
	if !ok {
		return false, fmt.Errorf("unsupported platform for syscall.Stat_t")
	}

	return stat.Dev != parentStat.Dev || path == parent, nil
}

// FreeSpace reports the bytes available to unprivileged writers at path.
func (s *Impl) FreeSpace(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return st.Bavail * uint64(st.Bsize), nil
}
