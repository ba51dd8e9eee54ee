// Package retention prunes a user's historical backups down to the
// configured number of rotation candidates.
package retention

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/lucianovk/backup-nextcloud-user-webdav/internal/models"
	"github.com/rs/zerolog"
)

// VersionsDirName holds superseded files in incremental mode.
const VersionsDirName = "_versions"

// candidatePattern matches timestamped snapshot directories, snapshot
// archives and version folders. Sidecars are handled with their archive.
var candidatePattern = regexp.MustCompile(`^\d{8}T\d{6}(\.tar\.gz)?$`)

// Service defines retention pruning for one user's backup root.
type Service interface {
	// Apply deletes every rotation candidate in userDir beyond keep, newest
	// first. Deletion failures are logged and swallowed; retention must
	// never fail a run.
	Apply(ctx context.Context, userDir string, mode models.Mode, keep int) (*models.RetentionResult, error)
}

// Impl implements the retention Service interface.
type Impl struct {
	logger zerolog.Logger
}

// New creates a new retention service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{logger: logger}
}

type candidate struct {
	path    string
	name    string
	modTime time.Time
}

// Apply enumerates rotation candidates and removes all but the keep newest.
// In snapshot mode candidates live directly under userDir; in incremental
// mode they are the per-run folders under _versions.
func (s *Impl) Apply(ctx context.Context, userDir string, mode models.Mode, keep int) (*models.RetentionResult, error) {
	dir := userDir
	if mode == models.ModeIncremental {
		dir = filepath.Join(userDir, VersionsDirName)
	}

	candidates, err := listCandidates(dir)
	if err != nil {
		// A missing _versions dir just means nothing to rotate yet.
		if os.IsNotExist(err) {
			return &models.RetentionResult{}, nil
		}
		return nil, err
	}

	// Newest first: modification time descending, ties broken by name
	// descending (equivalent, since the timestamp naming sorts).
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].modTime.Equal(candidates[j].modTime) {
			return candidates[i].modTime.After(candidates[j].modTime)
		}
		return candidates[i].name > candidates[j].name
	})

	result := &models.RetentionResult{}
	for i, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		if i < keep {
			result.Kept++
			continue
		}

		s.logger.Info().Str("path", c.path).Msg("removing outdated backup")
		if err := os.RemoveAll(c.path); err != nil {
			s.logger.Warn().Err(err).Str("path", c.path).Msg("could not remove outdated backup")
			result.Kept++
			continue
		}
		if strings.HasSuffix(c.name, ".tar.gz") {
			if err := os.Remove(c.path + ".sha256"); err != nil && !os.IsNotExist(err) {
				s.logger.Warn().Err(err).Str("path", c.path+".sha256").Msg("could not remove checksum sidecar")
			}
		}
		result.Removed++
	}

	s.logger.Debug().
		Str("dir", dir).
		Int("kept", result.Kept).
		Int("removed", result.Removed).
		Msg("retention applied")

	return result, nil
}

func listCandidates(dir string) ([]candidate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []candidate
	for _, e := range entries {
		if !candidatePattern.MatchString(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, candidate{
			path:    filepath.Join(dir, e.Name()),
			name:    e.Name(),
			modTime: info.ModTime(),
		})
	}
	return out, nil
}
