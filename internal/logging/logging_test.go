package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gamer.log")
	logger, err := New(path, "debug")
	require.NoError(t, err)

	logger.Info("turn completed")
	require.NoError(t, logger.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), "turn completed")
}

func TestNewEmptyPathIsNoOp(t *testing.T) {
	logger, err := New("", "info")
	require.NoError(t, err)
	require.NotNil(t, logger)
	logger.Info("dropped")
}

func TestNewUnknownLevelFallsBackToInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gamer.log")
	logger, err := New(path, "chatty")
	require.NoError(t, err)

	logger.Debug("hidden at info")
	logger.Info("visible")
	require.NoError(t, logger.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "hidden at info")
	require.Contains(t, string(raw), "visible")
}
