package preflight

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/lucianovk/backup-nextcloud-user-webdav/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestCheckTools_AbsolutePathExecutable(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "rclone")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755))

	err := New(testLogger()).CheckTools(models.Config{RclonePath: bin})

	assert.NoError(t, err)
}

func TestCheckTools_AbsolutePathMissing(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "rclone")

	err := New(testLogger()).CheckTools(models.Config{RclonePath: bin})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestCheckTools_AbsolutePathNotExecutable(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "rclone")
	require.NoError(t, os.WriteFile(bin, []byte("data"), 0o644))

	err := New(testLogger()).CheckTools(models.Config{RclonePath: bin})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not executable")
}

func TestCheckTools_BareNameNotInPath(t *testing.T) {
	err := New(testLogger()).CheckTools(models.Config{RclonePath: "definitely-not-a-real-binary"})

	require.Error(t, err)
}

func TestCheckUsersFile_Exists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.csv")
	require.NoError(t, os.WriteFile(path, []byte("alice,secret\n"), 0o600))

	assert.NoError(t, New(testLogger()).CheckUsersFile(path))
}

func TestCheckUsersFile_Missing(t *testing.T) {
	err := New(testLogger()).CheckUsersFile(filepath.Join(t.TempDir(), "users.csv"))

	require.Error(t, err)
}

func TestCheckUsersFile_Directory(t *testing.T) {
	err := New(testLogger()).CheckUsersFile(t.TempDir())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory")
}

func TestCheckMount_PlainDirectoryIsNotAMount(t *testing.T) {
	dir := t.TempDir()

	err := New(testLogger()).CheckMount(dir, filepath.Join(dir, "backups"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a mounted filesystem")
}

func TestCheckMount_RootIsAMount(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix-only")
	}

	// "/" is its own parent and always counts as mounted; the base path
	// containment is the part under test here.
	err := New(testLogger()).CheckMount("/", "/var/backups")

	assert.NoError(t, err)
}

func TestCheckMount_BasePathOutsideMount(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix-only")
	}

	err := New(testLogger()).CheckMount("/", "relative/path")

	require.Error(t, err)
}

func TestContains(t *testing.T) {
	assert.True(t, contains("/mnt/backup", "/mnt/backup"))
	assert.True(t, contains("/mnt/backup", "/mnt/backup/nextcloud"))
	assert.True(t, contains("/mnt/backup", "/mnt/backup/a/b/c"))
	assert.False(t, contains("/mnt/backup", "/mnt"))
	assert.False(t, contains("/mnt/backup", "/mnt/other"))
	assert.False(t, contains("/mnt/backup", "/mnt/backup/../other"))
	assert.False(t, contains("/mnt/backup", "/mnt/backup-two"))
}

func TestFreeSpace(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix-only")
	}

	free, err := New(testLogger()).FreeSpace(t.TempDir())

	require.NoError(t, err)
	assert.Greater(t, free, uint64(0))
}

func TestFreeSpace_MissingPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix-only")
	}

	_, err := New(testLogger()).FreeSpace(filepath.Join(t.TempDir(), "missing"))

	require.Error(t, err)
}
