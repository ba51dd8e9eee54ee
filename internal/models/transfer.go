package models

import "time"

// TransferResult holds the result of one rclone invocation.
type TransferResult struct {
	Output   string
	Duration time.Duration
	Error    error
}

// ArchiveResult holds the result of archiving a snapshot directory.
type ArchiveResult struct {
	ArchivePath string
	SidecarPath string // empty when checksums are disabled
	SizeBytes   int64
	Duration    time.Duration
	Error       error
}

// RetentionResult holds the result of pruning one user's rotation candidates.
type RetentionResult struct {
	Kept    int
	Removed int
}
