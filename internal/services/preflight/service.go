// Package preflight validates the environment before a backup run starts:
// tool availability, users-list presence, and the destination mount guard.
// Failures are reported to the orchestrator, never exited on, so operators
// still receive the end-of-run notification.
package preflight

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/lucianovk/backup-nextcloud-user-webdav/internal/models"
	"github.com/rs/zerolog"
)

// Service defines the pre-flight checks for a backup run.
type Service interface {
	// CheckTools verifies the rclone binary is invocable.
	CheckTools(cfg models.Config) error
	// CheckUsersFile verifies the users list exists and is a regular file.
	CheckUsersFile(path string) error
	// CheckMount verifies mountPoint is a literal filesystem mount and that
	// basePath is lexically contained within it.
	CheckMount(mountPoint, basePath string) error
	// FreeSpace reports the bytes available to unprivileged writers at path.
	FreeSpace(path string) (uint64, error)
}

// Impl implements the preflight Service interface.
type Impl struct {
	logger zerolog.Logger
}

// New creates a new preflight service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{logger: logger}
}

// CheckTools verifies the configured rclone binary can be invoked. A path
// containing a separator is stat'ed directly; a bare name goes through PATH.
func (s *Impl) CheckTools(cfg models.Config) error {
	bin := cfg.RclonePath

	if strings.ContainsRune(bin, os.PathSeparator) {
		info, err := os.Stat(bin)
		if err != nil {
			return fmt.Errorf("rclone binary not found at %s: %w", bin, err)
		}
		if info.IsDir() || info.Mode().Perm()&0o111 == 0 {
			return fmt.Errorf("rclone binary at %s is not executable", bin)
		}
		return nil
	}

	if _, err := exec.LookPath(bin); err != nil {
		return fmt.Errorf("rclone binary %q not found in PATH: %w", bin, err)
	}

	s.logger.Debug().Str("rclone", bin).Msg("external tools available")
	return nil
}

// CheckUsersFile verifies the users list path exists.
func (s *Impl) CheckUsersFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("users list %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("users list %s is a directory", path)
	}
	return nil
}

// CheckMount guards against writing to the boot disk when the backup disk is
// unplugged: the mount point must be an actual mount, not merely a directory,
// and the base path must live under it.
func (s *Impl) CheckMount(mountPoint, basePath string) error {
	mounted, err := isMountPoint(mountPoint)
	if err != nil {
		return fmt.Errorf("checking mount point %s: %w", mountPoint, err)
	}
	if !mounted {
		return fmt.Errorf("destination %s is not a mounted filesystem", mountPoint)
	}

	if !contains(mountPoint, basePath) {
		return fmt.Errorf("destination base path %s is not within mount point %s", basePath, mountPoint)
	}

	s.logger.Debug().Str("mount", mountPoint).Str("base", basePath).Msg("destination mount verified")
	return nil
}

// contains reports whether child is lexically equal to or beneath parent.
func contains(parent, child string) bool {
	rel, err := filepath.Rel(filepath.Clean(parent), filepath.Clean(child))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator)))
}
