package provisioner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/broadcast-tools/playout-bootstrap/internal/logger"
)

// sha256HexLength is the length of a hex-encoded SHA256 digest.
const sha256HexLength = 64

// verifyArchive checks the archive against its sha256 sidecar
// ("<archive>.sha256", sha256sum output format). The sidecar is looked up
// next to the archive first; for a fetched archive it is also fetched from
// the release location. A pre-staged archive never triggers network access.
// A sidecar that is simply unavailable downgrades to a warning so pre-seeded
// air-gapped builds keep working; a sidecar that is present but does not
// parse is fatal, as is a mismatch.
func (r *runner) verifyArchive(ctx context.Context, archivePath string) error {
	expected, err := r.expectedChecksum(ctx, archivePath)
	if errors.Is(err, errMalformedChecksum) {
		return fmt.Errorf("checksum sidecar for %s: %w", filepath.Base(archivePath), err)
	}

	if err != nil {
		logger.WarnKV(ctx, "No checksum available for archive, skipping verification",
			"archive", archivePath, "reason", err.Error())

		return nil
	}

	got, err := fileSHA256(archivePath)
	if err != nil {
		return fmt.Errorf("hash archive: %w", err)
	}

	if !strings.EqualFold(got, expected) {
		return fmt.Errorf("archive %s: expected %s, got %s: %w",
			filepath.Base(archivePath), strings.ToLower(expected), got, errChecksumMismatch)
	}

	logger.InfoKV(ctx, "Archive checksum verified", "sha256", got)

	return nil
}

// expectedChecksum resolves the expected archive digest from a local or
// remote sidecar file.
func (r *runner) expectedChecksum(ctx context.Context, archivePath string) (string, error) {
	sidecarPath := archivePath + checksumSuffix

	data, err := os.ReadFile(filepath.Clean(sidecarPath))
	if err == nil {
		return parseChecksum(data)
	}

	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	if r.source != ArtifactFetched {
		return "", fmt.Errorf("%s: %w", sidecarPath, os.ErrNotExist)
	}

	sidecarURL, err := releaseFileURL(r.opts.BaseURL, r.version, filepath.Base(sidecarPath))
	if err != nil {
		return "", err
	}

	body, err := r.fetch(ctx, sidecarURL)
	if err != nil {
		return "", err
	}

	defer func() {
		_ = body.Close()
	}()

	data, err = io.ReadAll(body)
	if err != nil {
		return "", err
	}

	return parseChecksum(data)
}

// parseChecksum extracts the digest from sha256sum output
// ("<hex>  <filename>" or a bare hex digest).
func parseChecksum(data []byte) (string, error) {
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return "", errMalformedChecksum
	}

	digest := strings.ToLower(fields[0])
	if len(digest) != sha256HexLength {
		return "", fmt.Errorf("%q: %w", digest, errMalformedChecksum)
	}

	if _, err := hex.DecodeString(digest); err != nil {
		return "", fmt.Errorf("%q: %w", digest, errMalformedChecksum)
	}

	return digest, nil
}

// fileSHA256 streams the file through SHA256 and returns the hex digest.
func fileSHA256(path string) (string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", err
	}

	defer func() {
		_ = f.Close()
	}()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
