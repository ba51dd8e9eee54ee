// Package users parses the users list driving a backup run.
//
// The format is one record per line: username,app_password[,ignored...].
// Blank lines and lines starting with '#' are skipped, fields are trimmed,
// and a final line without a trailing newline still yields its record.
package users

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/lucianovk/backup-nextcloud-user-webdav/internal/models"
	"github.com/rs/zerolog"
)

// Service defines users-list loading.
type Service interface {
	Load(path string) ([]models.UserCredential, error)
}

// Impl implements the users Service interface.
type Impl struct {
	logger zerolog.Logger
}

// New creates a new users service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{logger: logger}
}

// Load reads the users list at path. Records with an empty username are
// skipped; records with an empty app password are returned as-is so the
// orchestrator can report them as failures instead of silently dropping them.
func (s *Impl) Load(path string) ([]models.UserCredential, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening users list: %w", err)
	}
	defer func() { _ = f.Close() }()

	var creds []models.UserCredential

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, ",")
		username := strings.TrimSpace(fields[0])
		if username == "" {
			s.logger.Warn().Int("line", lineNo).Msg("skipping record with empty username")
			continue
		}

		password := ""
		if len(fields) > 1 {
			password = strings.TrimSpace(fields[1])
		}

		creds = append(creds, models.UserCredential{
			Username:    username,
			AppPassword: password,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading users list: %w", err)
	}

	s.logger.Debug().Int("count", len(creds)).Str("file", path).Msg("users list loaded")
	return creds, nil
}
