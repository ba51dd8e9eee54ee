// Package rclone invokes the external rclone binary against one user's
// WebDAV namespace.
package rclone

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/lucianovk/backup-nextcloud-user-webdav/internal/models"
	"github.com/rs/zerolog"
)

// remoteName is the section name used inside the ephemeral profile.
const remoteName = "source"

// Service defines the transfer operations delegated to rclone.
type Service interface {
	// Transfer copies (snapshot) or mirrors (incremental) one user's remote
	// namespace into destDir. versionsDir is the --backup-dir target for
	// incremental mode and must be empty for snapshot mode.
	Transfer(ctx context.Context, cfg models.Config, user models.UserCredential, destDir, versionsDir string) (*models.TransferResult, error)
}

// CommandExecutor allows mocking exec.Command in tests.
type CommandExecutor interface {
	Execute(ctx context.Context, name string, args ...string) ([]byte, error)
}

// DefaultExecutor is the default command executor using os/exec.
type DefaultExecutor struct{}

// Execute runs a command and returns its combined output.
func (e *DefaultExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// Impl implements the Service interface.
type Impl struct {
	executor CommandExecutor
	logger   zerolog.Logger
}

// New creates a new rclone service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		executor: &DefaultExecutor{},
		logger:   logger,
	}
}

// NewWithExecutor creates a new rclone service with a custom executor (for testing).
func NewWithExecutor(logger zerolog.Logger, executor CommandExecutor) *Impl {
	return &Impl{
		executor: executor,
		logger:   logger,
	}
}

// Transfer runs one rclone invocation for one user. A transient,
// credential-scoped profile is written for the duration of the call and
// removed on every exit path; the raw app password never touches disk.
func (s *Impl) Transfer(ctx context.Context, cfg models.Config, user models.UserCredential, destDir, versionsDir string) (*models.TransferResult, error) {
	start := time.Now()

	result := &models.TransferResult{}
	err := s.withProfile(cfg, user, func(profilePath string) error {
		args := buildArgs(cfg, profilePath, destDir, versionsDir)

		s.logger.Info().
			Str("user", user.Username).
			Str("mode", string(cfg.Backup.Mode)).
			Str("dest", destDir).
			Msg("starting transfer")

		output, err := s.executor.Execute(ctx, cfg.RclonePath, args...)
		result.Output = string(output)
		result.Duration = time.Since(start)
		if err != nil {
			result.Error = fmt.Errorf("rclone failed for %s: %w, output: %s", user.Username, err, string(output))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Error == nil {
		s.logger.Info().
			Str("user", user.Username).
			Dur("duration", result.Duration).
			Msg("transfer completed")
	}

	return result, nil
}

// withProfile writes the ephemeral connection profile, runs fn, and
// guarantees removal regardless of how fn exits.
func (s *Impl) withProfile(cfg models.Config, user models.UserCredential, fn func(profilePath string) error) error {
	obscured, err := Obscure(user.AppPassword)
	if err != nil {
		return fmt.Errorf("obscuring credentials: %w", err)
	}

	f, err := os.CreateTemp("", "nextcloud-backup-*.conf")
	if err != nil {
		return fmt.Errorf("creating transfer profile: %w", err)
	}
	defer func() { _ = os.Remove(f.Name()) }()

	profile := fmt.Sprintf("[%s]\ntype = webdav\nurl = %s\nvendor = nextcloud\nuser = %s\npass = %s\n",
		remoteName, userURL(cfg.Source.BaseURL, user.Username), user.Username, obscured)

	if _, err := f.WriteString(profile); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing transfer profile: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing transfer profile: %w", err)
	}

	return fn(f.Name())
}

func buildArgs(cfg models.Config, profilePath, destDir, versionsDir string) []string {
	args := []string{"--config", profilePath}

	if cfg.Backup.Mode == models.ModeIncremental {
		args = append(args, "sync", remoteName+":/", destDir, "--backup-dir", versionsDir)
	} else {
		args = append(args, "copy", remoteName+":/", destDir)
	}

	args = append(args,
		"--transfers", strconv.Itoa(cfg.Transfer.Transfers),
		"--checkers", strconv.Itoa(cfg.Transfer.Checkers),
		"--tpslimit", strconv.Itoa(cfg.Transfer.TPSLimit),
		"--timeout", cfg.Transfer.Timeout.String(),
		"--retries", strconv.Itoa(cfg.Transfer.Retries),
		"--low-level-retries", strconv.Itoa(cfg.Transfer.LowLevelRetries),
	)

	for _, pattern := range cfg.Backup.Excludes {
		args = append(args, "--exclude", pattern)
	}

	if cfg.Source.SkipTLSVerify {
		args = append(args, "--no-check-certificate")
	}

	return args
}

// userURL joins the WebDAV base URL with the user-scoped remote path.
func userURL(baseURL, username string) string {
	for len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}
	return baseURL + "/" + username
}
