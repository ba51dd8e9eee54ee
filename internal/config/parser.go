// Package config provides configuration parsing.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lucianovk/backup-nextcloud-user-webdav/internal/models"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. NCB_SOURCE_URL.
const EnvPrefix = "NCB"

// Parser handles configuration parsing from a YAML file and/or the
// environment. Every key can be supplied as NCB_<SECTION>_<KEY>.
type Parser struct {
	v *viper.Viper
}

// NewParser creates a new configuration parser.
func NewParser() *Parser {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bool defaults that differ from the zero value must be registered up
	// front; the post-read zero checks used for ints cannot tell an
	// explicit false from an absent key.
	v.SetDefault("source.skip_tls_verify", true)
	v.SetDefault("backup.checksum", true)

	return &Parser{v: v}
}

// LoadFile loads configuration from a file path, with environment overrides.
func (p *Parser) LoadFile(path string) (*models.Config, error) {
	p.v.SetConfigFile(path)

	if err := p.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return p.parse()
}

// LoadReader loads configuration from a string (useful for testing).
func (p *Parser) LoadReader(content string) (*models.Config, error) {
	if err := p.v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return p.parse()
}

// LoadEnv builds the configuration from the environment alone.
func (p *Parser) LoadEnv() (*models.Config, error) {
	return p.parse()
}

func (p *Parser) parse() (*models.Config, error) {
	cfg := &models.Config{}

	// Source settings (required).
	cfg.Source = models.SourceConfig{
		BaseURL:       p.expandEnv(p.v.GetString("source.url")),
		UsersFile:     p.expandEnv(p.v.GetString("source.users_file")),
		SkipTLSVerify: p.v.GetBool("source.skip_tls_verify"),
	}

	if cfg.Source.BaseURL == "" {
		return nil, fmt.Errorf("source.url is required")
	}
	if cfg.Source.UsersFile == "" {
		return nil, fmt.Errorf("source.users_file is required")
	}

	// Destination settings (required).
	cfg.Dest = models.DestConfig{
		MountPoint: p.expandEnv(p.v.GetString("dest.mount_point")),
		BasePath:   p.expandEnv(p.v.GetString("dest.base_path")),
	}

	if cfg.Dest.MountPoint == "" {
		return nil, fmt.Errorf("dest.mount_point is required")
	}
	if cfg.Dest.BasePath == "" {
		cfg.Dest.BasePath = cfg.Dest.MountPoint
	}

	// Backup policy.
	cfg.Backup = models.BackupSettings{
		Mode:      models.Mode(p.v.GetString("backup.mode")),
		Retention: p.v.GetInt("backup.retention"),
		Compress:  p.v.GetBool("backup.compress"),
		Checksum:  p.v.GetBool("backup.checksum"),
		Excludes:  p.excludes(),
	}

	if cfg.Backup.Mode == "" {
		cfg.Backup.Mode = models.ModeSnapshot
	}
	if cfg.Backup.Mode != models.ModeSnapshot && cfg.Backup.Mode != models.ModeIncremental {
		return nil, fmt.Errorf("backup.mode must be one of: snapshot, incremental")
	}
	if cfg.Backup.Retention == 0 {
		cfg.Backup.Retention = 1
	}
	if cfg.Backup.Retention < 1 {
		return nil, fmt.Errorf("backup.retention must be >= 1")
	}

	// Transfer tuning.
	cfg.Transfer = models.TransferSettings{
		Transfers:       p.v.GetInt("transfer.transfers"),
		Checkers:        p.v.GetInt("transfer.checkers"),
		TPSLimit:        p.v.GetInt("transfer.tps_limit"),
		Timeout:         p.v.GetDuration("transfer.timeout"),
		Retries:         p.v.GetInt("transfer.retries"),
		LowLevelRetries: p.v.GetInt("transfer.low_level_retries"),
	}

	if cfg.Transfer.Transfers == 0 {
		cfg.Transfer.Transfers = 4
	}
	if cfg.Transfer.Checkers == 0 {
		cfg.Transfer.Checkers = 8
	}
	if cfg.Transfer.TPSLimit == 0 {
		cfg.Transfer.TPSLimit = 10
	}
	if cfg.Transfer.Timeout == 0 {
		cfg.Transfer.Timeout = 5 * time.Minute
	}
	if cfg.Transfer.Retries == 0 {
		cfg.Transfer.Retries = 3
	}
	if cfg.Transfer.LowLevelRetries == 0 {
		cfg.Transfer.LowLevelRetries = 10
	}

	// Optional notification config.
	if p.v.GetString("notify.phone") != "" || p.v.GetString("notify.api_key") != "" {
		cfg.Notify = &models.NotifyConfig{
			Phone:     p.expandEnv(p.v.GetString("notify.phone")),
			APIKey:    p.expandEnv(p.v.GetString("notify.api_key")),
			AdminName: p.v.GetString("notify.admin_name"),
		}

		if cfg.Notify.Phone == "" {
			return nil, fmt.Errorf("notify.phone is required when notify is configured")
		}
		if cfg.Notify.APIKey == "" {
			return nil, fmt.Errorf("notify.api_key is required when notify is configured")
		}
		if cfg.Notify.AdminName == "" {
			cfg.Notify.AdminName = "admin"
		}
	}

	// Tool and state paths.
	cfg.RclonePath = p.expandEnv(p.v.GetString("rclone_path"))
	if cfg.RclonePath == "" {
		cfg.RclonePath = "rclone"
	}

	cfg.StateDir = p.expandEnv(p.v.GetString("state_dir"))
	if cfg.StateDir == "" {
		cfg.StateDir = "/var/lib/nextcloud-backup"
	}

	return cfg, nil
}

// excludes reads backup.excludes either as a YAML list or as a single
// newline-separated string (the environment form).
func (p *Parser) excludes() []string {
	raw := p.v.GetStringSlice("backup.excludes")
	var out []string
	for _, entry := range raw {
		for _, line := range strings.Split(entry, "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				out = append(out, line)
			}
		}
	}
	return out
}

// expandEnv expands environment variables in the format ${VAR} or $VAR.
func (p *Parser) expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Validate performs validation on the loaded configuration.
func Validate(cfg *models.Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if cfg.Source.BaseURL == "" {
		return fmt.Errorf("source.url is required")
	}
	if cfg.Source.UsersFile == "" {
		return fmt.Errorf("source.users_file is required")
	}
	if cfg.Dest.MountPoint == "" {
		return fmt.Errorf("dest.mount_point is required")
	}
	if cfg.Backup.Retention < 1 {
		return fmt.Errorf("backup.retention must be >= 1")
	}

	return nil
}
