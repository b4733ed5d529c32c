package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestMarkerExists covers both branches of the existence check.
func TestMarkerExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "ffplayout.db")

	exists, err := markerExists(path)
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, os.WriteFile(path, []byte("db"), 0o644))

	exists, err = markerExists(path)
	require.NoError(t, err)
	require.True(t, exists)
}

// TestAcquireInitLock verifies exclusive creation and release.
func TestAcquireInitLock(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	lock, err := acquireInitLock(dir)
	require.NoError(t, err)

	// A second acquisition while held must fail fast.
	_, err = acquireInitLock(dir)
	require.ErrorIs(t, err, errInitInProgress)

	lock.release()

	_, err = os.Stat(filepath.Join(dir, InitLockFilename))
	require.ErrorIs(t, err, os.ErrNotExist)

	// Released lock can be re-acquired.
	lock, err = acquireInitLock(dir)
	require.NoError(t, err)
	lock.release()
}

// TestInitLockRelease_Idempotent ensures double release is harmless.
func TestInitLockRelease_Idempotent(t *testing.T) {
	t.Parallel()

	lock, err := acquireInitLock(t.TempDir())
	require.NoError(t, err)

	lock.release()
	lock.release()
}
