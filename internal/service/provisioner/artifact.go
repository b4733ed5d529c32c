package provisioner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/broadcast-tools/playout-bootstrap/internal/logger"
)

// ArtifactSource tells how the release archive ended up on disk.
type ArtifactSource int

const (
	// ArtifactCached means a pre-staged archive was reused without network access.
	ArtifactCached ArtifactSource = iota
	// ArtifactFetched means the archive was downloaded from the release location.
	ArtifactFetched
)

// String returns a human-readable source name for logging.
func (s ArtifactSource) String() string {
	switch s {
	case ArtifactCached:
		return "cached"
	case ArtifactFetched:
		return "fetched"
	default:
		return "unknown"
	}
}

// ArtifactResult describes a successfully ensured release archive.
type ArtifactResult struct {
	// Source tells whether the archive was reused or downloaded.
	Source ArtifactSource
	// Path is the archive location on disk.
	Path string
}

// FetchFunc retrieves the content behind a URL. The production implementation
// uses HTTP; tests inject fakes so no real network I/O is performed.
type FetchFunc func(ctx context.Context, url string) (io.ReadCloser, error)

// httpFetch is the default FetchFunc. Any non-200 response is an error.
func httpFetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}

	response, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}

	if response.StatusCode != http.StatusOK {
		_ = response.Body.Close()

		return nil, fmt.Errorf("%s, %s: %w", url, response.Status, errBadHTTPStatus)
	}

	return response.Body, nil
}

// ensureArtifact makes sure the release archive for (version, platform) is
// present on disk: a pre-staged archive matching the expected filename is
// reused as-is (supporting air-gapped builds), otherwise the archive is
// fetched from the version-addressed release location.
func (r *runner) ensureArtifact(ctx context.Context) (ArtifactResult, error) {
	archivePath := filepath.Join(r.opts.DownloadDir, ArchiveName(r.version, r.opts.Platform))

	if _, err := os.Stat(archivePath); err == nil {
		logger.InfoKV(ctx, "Reusing pre-staged release archive", "path", archivePath)

		return ArtifactResult{Source: ArtifactCached, Path: archivePath}, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return ArtifactResult{}, fmt.Errorf("check for pre-staged archive: %w", err)
	}

	archiveURL, err := releaseFileURL(r.opts.BaseURL, r.version, filepath.Base(archivePath))
	if err != nil {
		return ArtifactResult{}, err
	}

	logger.InfoKV(ctx, "Fetching release archive", "url", archiveURL)

	written, err := r.fetchToFile(ctx, archiveURL, archivePath)
	if err != nil {
		return ArtifactResult{}, fmt.Errorf("fetch release archive: %w", err)
	}

	logger.InfoKV(ctx, "Release archive downloaded", "path", archivePath, "bytes", written)

	return ArtifactResult{Source: ArtifactFetched, Path: archivePath}, nil
}

// fetchToFile downloads a URL into dest. An empty payload is treated as a
// failed fetch and the partial file is removed so nothing stale is reused
// by a later build.
func (r *runner) fetchToFile(ctx context.Context, url, dest string) (int64, error) {
	body, err := r.fetch(ctx, url)
	if err != nil {
		return 0, err
	}

	defer func() {
		_ = body.Close()
	}()

	out, err := os.Create(filepath.Clean(dest))
	if err != nil {
		return 0, err
	}

	written, err := io.Copy(out, body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(dest)

		return 0, err
	}

	if written == 0 {
		_ = os.Remove(dest)

		return 0, fmt.Errorf("%s: %w", url, errEmptyPayload)
	}

	return written, nil
}
