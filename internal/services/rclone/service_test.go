package rclone

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/lucianovk/backup-nextcloud-user-webdav/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockExecutor struct {
	executeFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

	name string
	args []string
}

func (m *mockExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.name = name
	m.args = args
	if m.executeFunc != nil {
		return m.executeFunc(ctx, name, args...)
	}
	return []byte("ok"), nil
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testConfig(mode models.Mode) models.Config {
	return models.Config{
		Source: models.SourceConfig{
			BaseURL:       "https://cloud.example.org/remote.php/dav/files",
			SkipTLSVerify: true,
		},
		Backup: models.BackupSettings{
			Mode:     mode,
			Excludes: []string{"*.tmp"},
		},
		Transfer: models.TransferSettings{
			Transfers:       4,
			Checkers:        8,
			TPSLimit:        10,
			Timeout:         5 * time.Minute,
			Retries:         3,
			LowLevelRetries: 10,
		},
		RclonePath: "rclone",
	}
}

func testUser() models.UserCredential {
	return models.UserCredential{Username: "alice", AppPassword: "secret1"}
}

func argValue(args []string, flag string) (string, bool) {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1], true
		}
	}
	return "", false
}

func TestTransfer_SnapshotArgs(t *testing.T) {
	executor := &mockExecutor{}
	svc := NewWithExecutor(testLogger(), executor)

	result, err := svc.Transfer(context.Background(), testConfig(models.ModeSnapshot), testUser(), "/mnt/backup/alice/20240101T020000", "")

	require.NoError(t, err)
	require.NoError(t, result.Error)
	assert.Equal(t, "rclone", executor.name)
	assert.Contains(t, executor.args, "copy")
	assert.NotContains(t, executor.args, "sync")
	assert.NotContains(t, executor.args, "--backup-dir")
	assert.Contains(t, executor.args, "source:/")
	assert.Contains(t, executor.args, "/mnt/backup/alice/20240101T020000")

	transfers, ok := argValue(executor.args, "--transfers")
	require.True(t, ok)
	assert.Equal(t, "4", transfers)

	timeout, ok := argValue(executor.args, "--timeout")
	require.True(t, ok)
	assert.Equal(t, "5m0s", timeout)

	exclude, ok := argValue(executor.args, "--exclude")
	require.True(t, ok)
	assert.Equal(t, "*.tmp", exclude)

	assert.Contains(t, executor.args, "--no-check-certificate")
}

func TestTransfer_IncrementalArgs(t *testing.T) {
	executor := &mockExecutor{}
	svc := NewWithExecutor(testLogger(), executor)

	_, err := svc.Transfer(context.Background(), testConfig(models.ModeIncremental), testUser(),
		"/mnt/backup/alice/current", "/mnt/backup/alice/_versions/20240101T020000")

	require.NoError(t, err)
	assert.Contains(t, executor.args, "sync")
	assert.NotContains(t, executor.args, "copy")

	backupDir, ok := argValue(executor.args, "--backup-dir")
	require.True(t, ok)
	assert.Equal(t, "/mnt/backup/alice/_versions/20240101T020000", backupDir)
}

func TestTransfer_TLSVerificationEnabled(t *testing.T) {
	executor := &mockExecutor{}
	svc := NewWithExecutor(testLogger(), executor)

	cfg := testConfig(models.ModeSnapshot)
	cfg.Source.SkipTLSVerify = false

	_, err := svc.Transfer(context.Background(), cfg, testUser(), "/dest", "")

	require.NoError(t, err)
	assert.NotContains(t, executor.args, "--no-check-certificate")
}

func TestTransfer_ProfileIsScopedAndRemoved(t *testing.T) {
	var profilePath string
	var profileContent string

	executor := &mockExecutor{
		executeFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			path, ok := argValue(args, "--config")
			if !ok {
				t.Fatal("--config flag missing")
			}
			profilePath = path
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("profile not readable during transfer: %v", err)
			}
			profileContent = string(data)
			return nil, nil
		},
	}

	svc := NewWithExecutor(testLogger(), executor)
	_, err := svc.Transfer(context.Background(), testConfig(models.ModeSnapshot), testUser(), "/dest", "")

	require.NoError(t, err)
	require.NotEmpty(t, profilePath)

	// The raw secret never touches disk; the obscured form round-trips.
	assert.NotContains(t, profileContent, "secret1")
	assert.Contains(t, profileContent, "type = webdav")
	assert.Contains(t, profileContent, "vendor = nextcloud")
	assert.Contains(t, profileContent, "user = alice")
	assert.Contains(t, profileContent, "url = https://cloud.example.org/remote.php/dav/files/alice")

	for _, line := range strings.Split(profileContent, "\n") {
		if strings.HasPrefix(line, "pass = ") {
			revealed, err := Reveal(strings.TrimPrefix(line, "pass = "))
			require.NoError(t, err)
			assert.Equal(t, "secret1", revealed)
		}
	}

	// Removed on the success path.
	_, statErr := os.Stat(profilePath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestTransfer_ProfileRemovedOnFailure(t *testing.T) {
	var profilePath string

	executor := &mockExecutor{
		executeFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			profilePath, _ = argValue(args, "--config")
			return []byte("connection refused"), errors.New("exit status 1")
		},
	}

	svc := NewWithExecutor(testLogger(), executor)
	result, err := svc.Transfer(context.Background(), testConfig(models.ModeSnapshot), testUser(), "/dest", "")

	require.NoError(t, err)
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "connection refused")

	require.NotEmpty(t, profilePath)
	_, statErr := os.Stat(profilePath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestTransfer_FailureIsResultNotError(t *testing.T) {
	executor := &mockExecutor{
		executeFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return []byte("boom"), errors.New("exit status 3")
		},
	}

	svc := NewWithExecutor(testLogger(), executor)
	result, err := svc.Transfer(context.Background(), testConfig(models.ModeSnapshot), testUser(), "/dest", "")

	// The run must continue to the next user: expected failures travel in
	// the result, not the error.
	require.NoError(t, err)
	require.Error(t, result.Error)
}

func TestUserURL(t *testing.T) {
	assert.Equal(t,
		"https://cloud.example.org/remote.php/dav/files/alice",
		userURL("https://cloud.example.org/remote.php/dav/files/", "alice"))
	assert.Equal(t,
		"https://cloud.example.org/remote.php/dav/files/alice",
		userURL("https://cloud.example.org/remote.php/dav/files", "alice"))
}

func TestObscure_RoundTrip(t *testing.T) {
	for _, secret := range []string{"", "a", "secret1", "pässwörd with spaces"} {
		obscured, err := Obscure(secret)
		require.NoError(t, err)
		assert.NotEqual(t, secret, obscured)

		revealed, err := Reveal(obscured)
		require.NoError(t, err)
		assert.Equal(t, secret, revealed)
	}
}

func TestObscure_RandomIV(t *testing.T) {
	a, err := Obscure("secret1")
	require.NoError(t, err)
	b, err := Obscure("secret1")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestReveal_Garbage(t *testing.T) {
	_, err := Reveal("!!not-base64!!")
	require.Error(t, err)

	_, err = Reveal("c2hvcnQ")
	require.Error(t, err)
}
