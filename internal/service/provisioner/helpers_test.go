package provisioner

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

// buildArchive produces an in-memory tar.gz with the provided entries.
// Keys are entry names (may be nested), values are file contents.
func buildArchive(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()

	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for name, contents := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Typeflag: tar.TypeReg,
			Mode:     0o755,
			Size:     int64(len(contents)),
		}))

		_, err := tw.Write(contents)
		require.NoError(t, err)
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	return buf.Bytes()
}

// releaseEntries returns a complete release archive layout: the engine
// binary plus all runtime assets under a nested version directory.
func releaseEntries(version string) map[string][]byte {
	root := "ffplayout-v" + version
	entries := map[string][]byte{
		root + "/" + EngineBinaryName: []byte("#!engine\n"),
	}

	for _, asset := range RuntimeAssets {
		entries[root+"/assets/"+asset] = []byte("asset: " + asset)
	}

	return entries
}

// fetchFromMap is a FetchFunc serving canned responses by URL suffix match.
// URLs without a match produce an error, mimicking a 404.
func fetchFromMap(responses map[string][]byte) FetchFunc {
	return func(_ context.Context, url string) (io.ReadCloser, error) {
		for suffix, data := range responses {
			if len(url) >= len(suffix) && url[len(url)-len(suffix):] == suffix {
				return io.NopCloser(bytes.NewReader(data)), nil
			}
		}

		return nil, fmt.Errorf("%s, 404 Not Found: %w", url, errBadHTTPStatus)
	}
}

// failingFetch is a FetchFunc that fails the test when invoked.
func failingFetch(t *testing.T) FetchFunc {
	t.Helper()

	return func(context.Context, string) (io.ReadCloser, error) {
		t.Error("fetch must not be called")

		return nil, errBadHTTPStatus
	}
}

// sha256Hex returns the hex digest of data.
func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:])
}
