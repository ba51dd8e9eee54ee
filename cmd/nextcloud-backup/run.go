package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/lucianovk/backup-nextcloud-user-webdav/internal/config"
	"github.com/lucianovk/backup-nextcloud-user-webdav/internal/models"
	"github.com/lucianovk/backup-nextcloud-user-webdav/internal/services/runner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the backup run",
	Long: `Execute the complete backup run:
1. Pre-flight checks (rclone binary, users list)
2. Mount-point and destination path verification
3. Per-user transfer via rclone (snapshot or incremental)
4. Optional compression and checksum of snapshots
5. Retention-based rotation per user
6. One consolidated status notification

The process exits 0 for every recognized outcome, including aborts, so
schedulers do not treat an unplugged disk as a crash.`,
	RunE: runBackup,
}

func runBackup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
		return err
	}

	if err := config.Validate(cfg); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return err
	}

	log.Info().
		Str("source", cfg.Source.BaseURL).
		Str("mount", cfg.Dest.MountPoint).
		Str("mode", string(cfg.Backup.Mode)).
		Msg("configuration loaded")

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("received signal, shutting down")
		cancel()
	}()

	// Every recognized terminal outcome, aborts included, exits 0. The
	// outcome has already been printed and notified by the runner.
	runnerSvc := runner.New(log.Logger, cfg.StateDir)
	outcome := runnerSvc.Run(ctx, *cfg)

	log.Info().Str("outcome", string(outcome.Kind)).Msg("backup run finished")
	return nil
}

// loadConfig resolves configuration from the --config file when given, or
// from the environment alone otherwise.
func loadConfig() (*models.Config, error) {
	parser := config.NewParser()
	if configFile != "" {
		return parser.LoadFile(configFile)
	}
	return parser.LoadEnv()
}
