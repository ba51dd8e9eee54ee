// Package models contains the data structures used throughout nextcloud-backup.
package models

import "time"

// Mode selects how a user's remote namespace is written to disk.
type Mode string

const (
	// ModeSnapshot copies the remote into a fresh timestamped directory per run.
	ModeSnapshot Mode = "snapshot"
	// ModeIncremental mirrors the remote into a persistent "current" directory,
	// moving superseded files into timestamped version folders.
	ModeIncremental Mode = "incremental"
)

// TimestampFormat names snapshot directories, archives and version folders.
// The layout sorts lexically in chronological order.
const TimestampFormat = "20060102T150405"

// Config holds the complete configuration for a backup run. It is resolved
// once at process start and immutable afterwards.
type Config struct {
	Source   SourceConfig
	Dest     DestConfig
	Backup   BackupSettings
	Transfer TransferSettings
	Notify   *NotifyConfig // nil if not configured

	// RclonePath is the rclone binary; a bare name is resolved via PATH.
	RclonePath string

	// StateDir holds the last-success record, independent of the
	// destination mount so reporting works when the disk is unplugged.
	StateDir string
}

// SourceConfig describes the WebDAV side of a run.
type SourceConfig struct {
	// BaseURL is the per-user WebDAV root, e.g.
	// https://cloud.example.org/remote.php/dav/files
	BaseURL   string
	UsersFile string

	// SkipTLSVerify disables certificate verification (discouraged).
	SkipTLSVerify bool
}

// DestConfig describes the local destination.
type DestConfig struct {
	MountPoint string
	BasePath   string // must be contained within MountPoint
}

// BackupSettings holds per-run backup policy.
type BackupSettings struct {
	Mode      Mode
	Retention int // rotation candidates kept per user, >= 1
	Compress  bool
	Checksum  bool
	Excludes  []string // passed through verbatim to rclone
}

// TransferSettings bounds a single user's rclone invocation.
type TransferSettings struct {
	Transfers       int
	Checkers        int
	TPSLimit        int
	Timeout         time.Duration
	Retries         int
	LowLevelRetries int
}
