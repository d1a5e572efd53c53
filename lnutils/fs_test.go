package lnutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestCreateDir covers the per network data and log directories.
func TestCreateDir(t *testing.T) {
	t.Parallel()

	appDir := t.TempDir()

	// Nested network directories are created in one go and a second call
	// is a no-op.
	dataDir := filepath.Join(appDir, "data", "regtest")
	require.NoError(t, CreateDir(dataDir, 0700))
	require.NoError(t, CreateDir(dataDir, 0700))

	info, err := os.Stat(dataDir)
	require.NoError(t, err)
	require.True(t, info.IsDir())

	// A log dir symlinked to a missing volume gets a readable error.
	logLink := filepath.Join(appDir, "logs")
	require.NoError(t, os.Symlink(filepath.Join(appDir, "gone"), logLink))

	err = CreateDir(logLink, 0700)
	require.ErrorContains(t, err, "mounted?")

	// A regular file in the way is reported as well.
	sessions := filepath.Join(dataDir, "sessions.db")
	require.NoError(t, os.WriteFile(sessions, nil, 0600))
	require.Error(t, CreateDir(filepath.Join(sessions, "sub"), 0700))
}
