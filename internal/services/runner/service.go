// Package runner orchestrates a backup run: pre-flight checks, the
// sequential per-user transfer pipeline, outcome aggregation, state update
// and the end-of-run notification.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/lucianovk/backup-nextcloud-user-webdav/internal/models"
	"github.com/lucianovk/backup-nextcloud-user-webdav/internal/services/archive"
	"github.com/lucianovk/backup-nextcloud-user-webdav/internal/services/notify"
	"github.com/lucianovk/backup-nextcloud-user-webdav/internal/services/preflight"
	"github.com/lucianovk/backup-nextcloud-user-webdav/internal/services/rclone"
	"github.com/lucianovk/backup-nextcloud-user-webdav/internal/services/retention"
	"github.com/lucianovk/backup-nextcloud-user-webdav/internal/services/state"
	"github.com/lucianovk/backup-nextcloud-user-webdav/internal/services/users"
	"github.com/rs/zerolog"
)

// currentDirName is the persistent mirror directory in incremental mode.
const currentDirName = "current"

// Service defines the interface for the backup runner.
type Service interface {
	// Run executes a complete backup run and always produces a terminal
	// outcome; it never fails the process for a recognized condition.
	Run(ctx context.Context, cfg models.Config) *models.RunOutcome
}

// Impl implements the runner Service interface.
type Impl struct {
	preflightSvc preflight.Service
	usersSvc     users.Service
	rcloneSvc    rclone.Service
	archiveSvc   archive.Service
	retentionSvc retention.Service
	stateStore   state.Store
	notifySvc    notify.Service
	logger       zerolog.Logger
	stdout       io.Writer
}

// New creates a new runner service. stateDir locates the last-success
// record.
func New(logger zerolog.Logger, stateDir string) *Impl {
	return &Impl{
		preflightSvc: preflight.New(logger),
		usersSvc:     users.New(logger),
		rcloneSvc:    rclone.New(logger),
		archiveSvc:   archive.New(logger),
		retentionSvc: retention.New(logger),
		stateStore:   state.New(logger, stateDir),
		notifySvc:    notify.New(logger),
		logger:       logger,
		stdout:       os.Stdout,
	}
}

// NewWithServices creates a new runner service with custom services (for testing).
func NewWithServices(
	logger zerolog.Logger,
	preflightSvc preflight.Service,
	usersSvc users.Service,
	rcloneSvc rclone.Service,
	archiveSvc archive.Service,
	retentionSvc retention.Service,
	stateStore state.Store,
	notifySvc notify.Service,
	stdout io.Writer,
) *Impl {
	return &Impl{
		preflightSvc: preflightSvc,
		usersSvc:     usersSvc,
		rcloneSvc:    rcloneSvc,
		archiveSvc:   archiveSvc,
		retentionSvc: retentionSvc,
		stateStore:   stateStore,
		notifySvc:    notifySvc,
		logger:       logger,
		stdout:       stdout,
	}
}

// Run executes the complete backup workflow. Every terminal path prints one
// summary to stdout and attempts exactly one notification.
func (s *Impl) Run(ctx context.Context, cfg models.Config) *models.RunOutcome {
	start := time.Now()

	outcome := &models.RunOutcome{
		Start:            start,
		FreeSpace:        "unknown",
		DaysSinceSuccess: s.stateStore.DaysSince(start),
	}

	s.logger.Info().
		Str("source", cfg.Source.BaseURL).
		Str("dest", cfg.Dest.BasePath).
		Str("mode", string(cfg.Backup.Mode)).
		Msg("starting backup run")

	// Pre-flight: tools and users list. Failures abort the run but still
	// notify, so operators learn the backup cannot start.
	if err := s.preflightSvc.CheckTools(cfg); err != nil {
		return s.abort(ctx, cfg, outcome, err)
	}
	if err := s.preflightSvc.CheckUsersFile(cfg.Source.UsersFile); err != nil {
		return s.abort(ctx, cfg, outcome, err)
	}

	// Mount guard: never write to the boot disk because the backup disk is
	// unplugged.
	if err := s.preflightSvc.CheckMount(cfg.Dest.MountPoint, cfg.Dest.BasePath); err != nil {
		return s.abort(ctx, cfg, outcome, err)
	}

	creds, err := s.usersSvc.Load(cfg.Source.UsersFile)
	if err != nil {
		return s.abort(ctx, cfg, outcome, err)
	}

	if cfg.Backup.Mode == models.ModeIncremental && cfg.Backup.Compress {
		s.logger.Warn().Msg("compression is ignored in incremental mode: the mirror is live, not a discrete archive")
	}

	// Users are processed strictly sequentially; one user's failure never
	// aborts the rest of the run.
	results := make([]models.UserResult, 0, len(creds))
	for _, user := range creds {
		results = append(results, s.backupUser(ctx, cfg, user))
	}

	outcome.Summary = models.Summarize(results)
	outcome.End = time.Now()
	outcome.Duration = outcome.End.Sub(outcome.Start)

	switch {
	case len(results) == 0:
		outcome.Kind = models.OutcomeNoUsers
	case outcome.Summary.Failed > 0:
		outcome.Kind = models.OutcomeFailed
	default:
		outcome.Kind = models.OutcomeFullSuccess
		if free, err := s.preflightSvc.FreeSpace(cfg.Dest.BasePath); err == nil {
			outcome.FreeSpace = archive.FormatBytes(int64(free))
		}
		if err := s.stateStore.RecordSuccess(outcome.End); err != nil {
			s.logger.Warn().Err(err).Msg("could not update last-success record")
		}
	}

	s.finish(ctx, cfg, outcome)
	return outcome
}

// abort terminates the run before any per-user work. Aborts are a reported
// condition, not a process failure.
func (s *Impl) abort(ctx context.Context, cfg models.Config, outcome *models.RunOutcome, reason error) *models.RunOutcome {
	s.logger.Error().Err(reason).Msg("backup run aborted")

	outcome.Kind = models.OutcomeAborted
	outcome.AbortReason = reason.Error()
	outcome.End = time.Now()
	outcome.Duration = outcome.End.Sub(outcome.Start)

	s.finish(ctx, cfg, outcome)
	return outcome
}

// finish prints the summary to stdout and attempts the single notification.
// Notification failures are swallowed.
func (s *Impl) finish(ctx context.Context, cfg models.Config, outcome *models.RunOutcome) {
	adminName := "admin"
	if cfg.Notify != nil {
		adminName = cfg.Notify.AdminName
	}
	text := notify.Compose(adminName, *outcome)

	fmt.Fprintln(s.stdout, text)

	if cfg.Notify == nil {
		return
	}

	result, err := s.notifySvc.Send(ctx, *cfg.Notify, text)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to send notification")
		return
	}
	if result.Error != nil {
		s.logger.Error().Err(result.Error).Msg("failed to send notification")
	}
}

// backupUser runs the transfer, archival and retention pipeline for one
// user. All failures are isolated into the returned result.
func (s *Impl) backupUser(ctx context.Context, cfg models.Config, user models.UserCredential) models.UserResult {
	if user.AppPassword == "" {
		s.logger.Error().Str("user", user.Username).Msg("empty app password")
		return models.UserResult{
			Username: user.Username,
			Size:     "unknown",
			Status:   models.StatusFailed,
			Reason:   models.ReasonEmptyCredentials,
		}
	}

	userDir := filepath.Join(cfg.Dest.BasePath, user.Username)
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		s.logger.Error().Err(err).Str("user", user.Username).Msg("could not create user directory")
		return transferFailure(user)
	}

	timestamp := time.Now().Format(models.TimestampFormat)

	var destDir, versionsDir string
	if cfg.Backup.Mode == models.ModeIncremental {
		destDir = filepath.Join(userDir, currentDirName)
		versionsDir = filepath.Join(userDir, retention.VersionsDirName, timestamp)
	} else {
		destDir = filepath.Join(userDir, timestamp)
	}

	res, err := s.rcloneSvc.Transfer(ctx, cfg, user, destDir, versionsDir)
	if err != nil {
		s.logger.Error().Err(err).Str("user", user.Username).Msg("transfer could not be started")
		return transferFailure(user)
	}
	if res.Error != nil {
		s.logger.Error().Err(res.Error).Str("user", user.Username).Msg("transfer failed")
		return transferFailure(user)
	}

	size := "unknown"
	if cfg.Backup.Mode == models.ModeSnapshot && cfg.Backup.Compress {
		archivePath := filepath.Join(userDir, timestamp+".tar.gz")
		ar, err := s.archiveSvc.Archive(ctx, destDir, archivePath, cfg.Backup.Checksum)
		if err != nil {
			s.logger.Error().Err(err).Str("user", user.Username).Msg("archiving failed")
			return transferFailure(user)
		}
		if ar.Error != nil {
			s.logger.Error().Err(ar.Error).Str("user", user.Username).Msg("archiving failed")
			return transferFailure(user)
		}
		size = archive.FormatBytes(ar.SizeBytes)
	} else {
		size = s.archiveSvc.HumanSize(destDir)
	}

	// Retention runs only after a successful transfer: history is never
	// traded away for a run that produced nothing.
	if _, err := s.retentionSvc.Apply(ctx, userDir, cfg.Backup.Mode, cfg.Backup.Retention); err != nil {
		s.logger.Warn().Err(err).Str("user", user.Username).Msg("retention could not be applied")
	}

	return models.UserResult{
		Username: user.Username,
		Size:     size,
		Status:   models.StatusOK,
	}
}

func transferFailure(user models.UserCredential) models.UserResult {
	return models.UserResult{
		Username: user.Username,
		Size:     "unknown",
		Status:   models.StatusFailed,
		Reason:   models.ReasonTransferError,
	}
}
