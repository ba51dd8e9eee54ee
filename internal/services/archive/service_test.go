package archive

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	kgzip "github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func makeSnapshotDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "20240101T020000")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Documents"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Documents", "report.txt"), []byte("world"), 0o644))
	return dir
}

func TestArchive_WithChecksum(t *testing.T) {
	svc := New(testLogger())
	src := makeSnapshotDir(t)
	archivePath := src + ".tar.gz"

	result, err := svc.Archive(context.Background(), src, archivePath, true)

	require.NoError(t, err)
	require.NoError(t, result.Error)
	assert.Equal(t, archivePath, result.ArchivePath)
	assert.Equal(t, archivePath+SidecarSuffix, result.SidecarPath)
	assert.Greater(t, result.SizeBytes, int64(0))

	// Source directory is removed once the archive is complete.
	_, statErr := os.Stat(src)
	assert.True(t, os.IsNotExist(statErr))

	// Sidecar verifies against the archive.
	assert.NoError(t, svc.Verify(archivePath))
}

func TestArchive_WithoutChecksum(t *testing.T) {
	svc := New(testLogger())
	src := makeSnapshotDir(t)
	archivePath := src + ".tar.gz"

	result, err := svc.Archive(context.Background(), src, archivePath, false)

	require.NoError(t, err)
	require.NoError(t, result.Error)
	assert.Empty(t, result.SidecarPath)

	_, statErr := os.Stat(archivePath + SidecarSuffix)
	assert.True(t, os.IsNotExist(statErr))
}

func TestArchive_ContentRoundTrip(t *testing.T) {
	svc := New(testLogger())
	src := makeSnapshotDir(t)
	archivePath := src + ".tar.gz"

	_, err := svc.Archive(context.Background(), src, archivePath, false)
	require.NoError(t, err)

	f, err := os.Open(archivePath)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	gz, err := kgzip.NewReader(f)
	require.NoError(t, err)

	found := map[string]string{}
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		found[hdr.Name] = string(data)
	}

	assert.Equal(t, "hello", found["notes.txt"])
	assert.Equal(t, "world", found["Documents/report.txt"])
}

func TestArchive_MissingSource(t *testing.T) {
	svc := New(testLogger())
	missing := filepath.Join(t.TempDir(), "missing")

	result, err := svc.Archive(context.Background(), missing, missing+".tar.gz", true)

	require.NoError(t, err)
	require.Error(t, result.Error)

	_, statErr := os.Stat(missing + ".tar.gz")
	assert.True(t, os.IsNotExist(statErr))
}

func TestVerify_DetectsTampering(t *testing.T) {
	svc := New(testLogger())
	src := makeSnapshotDir(t)
	archivePath := src + ".tar.gz"

	_, err := svc.Archive(context.Background(), src, archivePath, true)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(archivePath, []byte("tampered"), 0o644))

	err = svc.Verify(archivePath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
}

func TestVerify_MissingSidecar(t *testing.T) {
	svc := New(testLogger())
	archivePath := filepath.Join(t.TempDir(), "20240101T020000.tar.gz")
	require.NoError(t, os.WriteFile(archivePath, []byte("data"), 0o644))

	require.Error(t, svc.Verify(archivePath))
}

func TestHumanSize_Directory(t *testing.T) {
	svc := New(testLogger())
	src := makeSnapshotDir(t)

	// "hello" + "world" = 10 bytes.
	assert.Equal(t, "10 B", svc.HumanSize(src))
}

func TestHumanSize_File(t *testing.T) {
	svc := New(testLogger())
	path := filepath.Join(t.TempDir(), "blob")
	require.NoError(t, os.WriteFile(path, make([]byte, 2048), 0o644))

	assert.Equal(t, "2.0 KiB", svc.HumanSize(path))
}

func TestHumanSize_Missing(t *testing.T) {
	svc := New(testLogger())

	assert.Equal(t, "unknown", svc.HumanSize(filepath.Join(t.TempDir(), "missing")))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "0 B", FormatBytes(0))
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.0 KiB", FormatBytes(1024))
	assert.Equal(t, "1.5 MiB", FormatBytes(3*1024*1024/2))
	assert.Equal(t, "2.0 GiB", FormatBytes(2*1024*1024*1024))
}
