// Package state persists the epoch of the last fully successful run. The
// record lives outside the destination mount so "days since last success"
// is reportable even when the backup disk is unplugged.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const lastSuccessFile = "last_success"

// Store defines access to the last-success record.
type Store interface {
	// LastSuccess returns the recorded time and whether a record exists.
	LastSuccess() (time.Time, bool, error)
	// RecordSuccess overwrites the record. Called only on full success.
	RecordSuccess(t time.Time) error
	// DaysSince returns full days between the record and now, or -1 when no
	// run has ever fully succeeded.
	DaysSince(now time.Time) int
}

// Impl implements the state Store interface.
type Impl struct {
	dir    string
	logger zerolog.Logger
}

// New creates a new state store rooted at dir.
func New(logger zerolog.Logger, dir string) *Impl {
	return &Impl{dir: dir, logger: logger}
}

func (s *Impl) path() string {
	return filepath.Join(s.dir, lastSuccessFile)
}

// LastSuccess reads the persisted epoch. A missing file is not an error.
func (s *Impl) LastSuccess() (time.Time, bool, error) {
	data, err := os.ReadFile(s.path())
	if os.IsNotExist(err) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("reading state file: %w", err)
	}

	epoch, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parsing state file: %w", err)
	}

	return time.Unix(epoch, 0), true, nil
}

// RecordSuccess persists t as the last fully successful run.
func (s *Impl) RecordSuccess(t time.Time) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}

	data := strconv.FormatInt(t.Unix(), 10) + "\n"
	if err := os.WriteFile(s.path(), []byte(data), 0o600); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}

	s.logger.Debug().Time("at", t).Msg("last-success record updated")
	return nil
}

// DaysSince reports full days since the last success, -1 when unknown.
func (s *Impl) DaysSince(now time.Time) int {
	last, ok, err := s.LastSuccess()
	if err != nil {
		s.logger.Warn().Err(err).Msg("could not read last-success record")
		return -1
	}
	if !ok {
		return -1
	}

	days := int(now.Sub(last).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
