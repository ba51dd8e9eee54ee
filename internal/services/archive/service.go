// Package archive turns snapshot directories into compressed tar archives
// with optional checksum sidecars, and reports human-readable sizes.
package archive

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	kgzip "github.com/klauspost/compress/gzip"
	"github.com/klauspost/pgzip"
	"github.com/lucianovk/backup-nextcloud-user-webdav/internal/models"
	"github.com/rs/zerolog"
)

// SidecarSuffix is appended to an archive path to name its checksum file.
const SidecarSuffix = ".sha256"

// Service defines archiving and sizing operations.
type Service interface {
	// Archive compresses srcDir into archivePath (tar.gz), writes a sha256
	// sidecar when withChecksum is set, and removes srcDir on success.
	Archive(ctx context.Context, srcDir, archivePath string, withChecksum bool) (*models.ArchiveResult, error)
	// Verify checks the archive against its sidecar and that the compressed
	// stream is intact.
	Verify(archivePath string) error
	// HumanSize reports the size of a file or directory tree, or "unknown"
	// when the path is missing.
	HumanSize(path string) string
}

// Impl implements the archive Service interface.
type Impl struct {
	logger zerolog.Logger
}

// New creates a new archive service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{logger: logger}
}

// Archive writes srcDir into a gzip-compressed tar at archivePath. Entries
// are stored relative to srcDir so extraction recreates the snapshot layout.
// The uncompressed directory is removed only after the archive (and sidecar,
// when requested) has been fully written.
func (s *Impl) Archive(ctx context.Context, srcDir, archivePath string, withChecksum bool) (*models.ArchiveResult, error) {
	start := time.Now()
	result := &models.ArchiveResult{ArchivePath: archivePath}

	if err := s.writeArchive(ctx, srcDir, archivePath); err != nil {
		_ = os.Remove(archivePath)
		result.Error = err
		result.Duration = time.Since(start)
		return result, nil
	}

	if withChecksum {
		sidecar, err := s.writeSidecar(archivePath)
		if err != nil {
			_ = os.Remove(archivePath)
			result.Error = err
			result.Duration = time.Since(start)
			return result, nil
		}
		result.SidecarPath = sidecar
	}

	info, err := os.Stat(archivePath)
	if err == nil {
		result.SizeBytes = info.Size()
	}

	if err := os.RemoveAll(srcDir); err != nil {
		// The archive is complete; a leftover directory is rotation's
		// problem, not a failed backup.
		s.logger.Warn().Err(err).Str("dir", srcDir).Msg("could not remove archived snapshot directory")
	}

	result.Duration = time.Since(start)
	s.logger.Info().
		Str("archive", archivePath).
		Int64("size", result.SizeBytes).
		Dur("duration", result.Duration).
		Msg("snapshot archived")

	return result, nil
}

func (s *Impl) writeArchive(ctx context.Context, srcDir, archivePath string) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}
	defer func() { _ = out.Close() }()

	gz := pgzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	err = filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()

		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return fmt.Errorf("archiving %s: %w", srcDir, err)
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("finalizing tar stream: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("finalizing gzip stream: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("finalizing archive: %w", err)
	}

	return nil
}

// writeSidecar writes a sha256sum-compatible sidecar next to the archive.
func (s *Impl) writeSidecar(archivePath string) (string, error) {
	sum, err := fileSHA256(archivePath)
	if err != nil {
		return "", err
	}

	sidecar := archivePath + SidecarSuffix
	line := fmt.Sprintf("%s  %s\n", sum, filepath.Base(archivePath))
	if err := os.WriteFile(sidecar, []byte(line), 0o644); err != nil {
		return "", fmt.Errorf("writing checksum sidecar: %w", err)
	}

	return sidecar, nil
}

// Verify recomputes the archive's sha256 against its sidecar and reads the
// gzip stream to its end so a truncated archive is also caught.
func (s *Impl) Verify(archivePath string) error {
	data, err := os.ReadFile(archivePath + SidecarSuffix)
	if err != nil {
		return fmt.Errorf("reading checksum sidecar: %w", err)
	}

	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return fmt.Errorf("checksum sidecar for %s is empty", archivePath)
	}
	want := fields[0]

	got, err := fileSHA256(archivePath)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("checksum mismatch for %s: got %s, want %s", archivePath, got, want)
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer func() { _ = f.Close() }()

	gz, err := kgzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("reading gzip stream: %w", err)
	}
	defer func() { _ = gz.Close() }()

	if _, err := io.Copy(io.Discard, gz); err != nil {
		return fmt.Errorf("gzip stream of %s is corrupt: %w", archivePath, err)
	}

	return nil
}

// HumanSize reports the recursive size of path, or "unknown" when it cannot
// be determined.
func (s *Impl) HumanSize(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "unknown"
	}
	if !info.IsDir() {
		return FormatBytes(info.Size())
	}

	var total int64
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			fi, err := d.Info()
			if err != nil {
				return err
			}
			total += fi.Size()
		}
		return nil
	})
	if err != nil {
		return "unknown"
	}

	return FormatBytes(total)
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// FormatBytes formats bytes into human-readable form.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
