package provisioner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestExtractArchive unpacks a nested layout and preserves contents.
func TestExtractArchive(t *testing.T) {
	t.Parallel()

	archivePath := filepath.Join(t.TempDir(), "release.tar.gz")
	data := buildArchive(t, map[string][]byte{
		"ffplayout-v0.25.3/ffplayout":        []byte("#!engine\n"),
		"ffplayout-v0.25.3/assets/logo.png":  []byte("png"),
		"ffplayout-v0.25.3/assets/dummy.vtt": []byte("WEBVTT"),
	})
	require.NoError(t, os.WriteFile(archivePath, data, 0o644))

	dest := t.TempDir()
	require.NoError(t, extractArchive(archivePath, dest))

	contents, err := os.ReadFile(filepath.Join(dest, "ffplayout-v0.25.3", "ffplayout"))
	require.NoError(t, err)
	require.Equal(t, []byte("#!engine\n"), contents)

	contents, err = os.ReadFile(filepath.Join(dest, "ffplayout-v0.25.3", "assets", "dummy.vtt"))
	require.NoError(t, err)
	require.Equal(t, []byte("WEBVTT"), contents)
}

// TestExtractArchive_RejectsTraversal ensures entries cannot escape the
// extraction directory.
func TestExtractArchive_RejectsTraversal(t *testing.T) {
	t.Parallel()

	archivePath := filepath.Join(t.TempDir(), "evil.tar.gz")
	data := buildArchive(t, map[string][]byte{
		"../evil": []byte("nope"),
	})
	require.NoError(t, os.WriteFile(archivePath, data, 0o644))

	err := extractArchive(archivePath, t.TempDir())
	require.ErrorIs(t, err, errUnsafeArchivePath)
}

// TestExtractArchive_NotGzip fails cleanly on a corrupt archive.
func TestExtractArchive_NotGzip(t *testing.T) {
	t.Parallel()

	archivePath := filepath.Join(t.TempDir(), "broken.tar.gz")
	require.NoError(t, os.WriteFile(archivePath, []byte("not a gzip stream"), 0o644))

	require.Error(t, extractArchive(archivePath, t.TempDir()))
}

// TestFindExtracted matches by base name regardless of nesting.
func TestFindExtracted(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "logo.png"), []byte("png"), 0o644))

	path, err := findExtracted(root, "logo.png")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(nested, "logo.png"), path)

	_, err = findExtracted(root, "missing.bin")
	require.ErrorIs(t, err, errMissingArchiveEntry)
}
