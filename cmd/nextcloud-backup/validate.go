package main

import (
	"fmt"

	"github.com/lucianovk/backup-nextcloud-user-webdav/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long:  `Validate the configuration without executing any backup operations.`,
	RunE:  validateConfig,
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		log.Error().Err(err).Msg("failed to parse config")
		return err
	}

	if err := config.Validate(cfg); err != nil {
		log.Error().Err(err).Msg("configuration validation failed")
		return err
	}

	fmt.Println("Configuration is valid!")
	fmt.Println()
	fmt.Println("Summary:")
	fmt.Printf("  Source URL: %s\n", cfg.Source.BaseURL)
	fmt.Printf("  Users list: %s\n", cfg.Source.UsersFile)
	fmt.Printf("  Mount point: %s\n", cfg.Dest.MountPoint)
	fmt.Printf("  Base path: %s\n", cfg.Dest.BasePath)
	fmt.Printf("  Mode: %s\n", cfg.Backup.Mode)
	fmt.Println()
	fmt.Println("Backup Policy:")
	fmt.Printf("  Retention: %d\n", cfg.Backup.Retention)
	fmt.Printf("  Compress: %v\n", cfg.Backup.Compress)
	fmt.Printf("  Checksum: %v\n", cfg.Backup.Checksum)
	fmt.Printf("  TLS verification skipped: %v\n", cfg.Source.SkipTLSVerify)
	if len(cfg.Backup.Excludes) > 0 {
		fmt.Printf("  Excludes: %v\n", cfg.Backup.Excludes)
	}
	fmt.Println()
	fmt.Println("Transfer Tuning:")
	fmt.Printf("  Transfers: %d\n", cfg.Transfer.Transfers)
	fmt.Printf("  Checkers: %d\n", cfg.Transfer.Checkers)
	fmt.Printf("  TPS limit: %d\n", cfg.Transfer.TPSLimit)
	fmt.Printf("  Timeout: %s\n", cfg.Transfer.Timeout)
	fmt.Printf("  Retries: %d (low-level: %d)\n", cfg.Transfer.Retries, cfg.Transfer.LowLevelRetries)
	fmt.Println()
	fmt.Println("Optional Features:")
	fmt.Printf("  Notification: %v\n", cfg.Notify != nil)

	if cfg.Notify != nil {
		fmt.Println()
		fmt.Println("Notification Configuration:")
		fmt.Printf("  Phone: %s\n", cfg.Notify.Phone)
		fmt.Printf("  Admin name: %s\n", cfg.Notify.AdminName)
		fmt.Printf("  API key: (configured)\n")
	}

	fmt.Println()
	fmt.Printf("State directory: %s\n", cfg.StateDir)
	fmt.Printf("rclone binary: %s\n", cfg.RclonePath)

	return nil
}
