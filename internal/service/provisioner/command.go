package provisioner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/broadcast-tools/playout-bootstrap/internal/logger"
)

var (
	errVersionRequired     = errors.New("release version must be provided")
	errInvalidVersion      = errors.New("release version is not valid semver")
	errUnsupportedPlatform = errors.New("platform triple is not supported")
	errBadHTTPStatus       = errors.New("unexpected http status")
	errEmptyPayload        = errors.New("fetched archive is empty")
	errChecksumMismatch    = errors.New("archive checksum mismatch")
	errMalformedChecksum   = errors.New("malformed checksum sidecar")
	errUnsafeArchivePath   = errors.New("archive entry escapes extraction directory")
	errEntryTooLarge       = errors.New("archive entry exceeds size limit")
	errMissingArchiveEntry = errors.New("expected file missing from archive")
)

// Options are inputs accepted by the provisioner entry point.
type Options struct {
	// Version is the pinned engine release, with or without a leading "v".
	Version string
	// Platform is the target platform triple. Defaults to SupportedPlatform,
	// which is also the only accepted value.
	Platform string
	// DownloadDir is where a pre-staged archive may sit and where a fetched
	// one lands. Defaults to the working directory.
	DownloadDir string
	// BaseURL is the version-addressed release location.
	BaseURL string
	// BinDir is the executable search path the engine binary is installed into.
	BinDir string
	// AssetsDir is the shared directory runtime assets are staged into.
	AssetsDir string
	// KeepArchive leaves a fetched archive on disk after staging.
	KeepArchive bool
	// SkipVerify disables the sha256 sidecar verification.
	SkipVerify bool
}

// runner holds the state of a single provisioning execution.
// It is intentionally unexported—call Run(ctx, Options) from callers.
type runner struct {
	opts    *Options
	version string         // Normalized version, no "v" prefix.
	fetch   FetchFunc      // Injectable fetch capability.
	source  ArtifactSource // How the archive got here, drives cleanup.

	archivePath string
	scratchDir  string
}

// Run executes the provisioner lifecycle and is the public entry point for
// the CLI: ensure the release archive is present, verify it, extract it into
// a scratch directory, install the engine binary and stage the runtime
// assets, then clean up so the image layer stays small.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "playout-provision")

	r, err := newRunner(opts)
	if err != nil {
		return err
	}

	defer r.cleanup(ctx)

	if err = r.run(ctx); err != nil {
		logger.ErrorKV(ctx, "Provisioning failed", "error", err)

		return err
	}

	logger.Info(ctx, "Provisioning completed")

	return nil
}

// newRunner validates the inputs and fills in defaults.
func newRunner(opts *Options) (*runner, error) {
	version, err := normalizeVersion(opts.Version)
	if err != nil {
		return nil, err
	}

	if opts.Platform == "" {
		opts.Platform = SupportedPlatform
	}

	if opts.Platform != SupportedPlatform {
		return nil, fmt.Errorf("%q: %w", opts.Platform, errUnsupportedPlatform)
	}

	if opts.DownloadDir == "" {
		opts.DownloadDir = DefaultDownloadDir
	}

	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}

	if opts.BinDir == "" {
		opts.BinDir = DefaultBinDir
	}

	if opts.AssetsDir == "" {
		opts.AssetsDir = DefaultAssetsDir
	}

	return &runner{
		opts:    opts,
		version: version,
		fetch:   httpFetch,
	}, nil
}

// run executes the provisioning phases in order:
// 1) Ensure the archive is present (cached or fetched).
// 2) Verify it against its sha256 sidecar.
// 3) Extract into a scratch directory.
// 4) Install the engine binary into the executable search path.
// 5) Stage the runtime assets into the shared assets directory.
func (r *runner) run(ctx context.Context) error {
	result, err := r.ensureArtifact(ctx)
	if err != nil {
		return err
	}

	r.archivePath = result.Path
	r.source = result.Source

	logger.InfoKV(ctx, "Release archive ensured",
		"source", result.Source.String(), "version", r.version, "platform", r.opts.Platform)

	if r.opts.SkipVerify {
		logger.Warn(ctx, "Archive verification disabled by request")
	} else if err = r.verifyArchive(ctx, r.archivePath); err != nil {
		return err
	}

	r.scratchDir, err = os.MkdirTemp("", "playout-provision-")
	if err != nil {
		return fmt.Errorf("create scratch directory: %w", err)
	}

	logger.InfoKV(ctx, "Extracting release archive", "scratch", r.scratchDir)

	if err = extractArchive(r.archivePath, r.scratchDir); err != nil {
		return fmt.Errorf("extract archive: %w", err)
	}

	if err = r.installBinary(ctx); err != nil {
		return fmt.Errorf("install engine binary: %w", err)
	}

	if err = r.stageAssets(ctx); err != nil {
		return fmt.Errorf("stage runtime assets: %w", err)
	}

	return nil
}

// installBinary moves the extracted engine executable into the executable
// search path with an atomic, permission-setting apply.
func (r *runner) installBinary(ctx context.Context) error {
	extracted, err := findExtracted(r.scratchDir, EngineBinaryName)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(filepath.Clean(extracted))
	if err != nil {
		return err
	}

	if err = os.MkdirAll(r.opts.BinDir, DefaultFileMode); err != nil {
		return err
	}

	target := filepath.Join(r.opts.BinDir, EngineBinaryName)

	if _, err = os.Stat(target); err != nil && os.IsNotExist(err) {
		if _, err = os.Create(filepath.Clean(target)); err != nil {
			return err
		}
	}

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: DefaultFileMode,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return err
	}

	oldFileName := target + ".old"
	if _, err = os.Stat(oldFileName); err == nil {
		_ = os.Remove(oldFileName)
	}

	logger.InfoKV(ctx, "Engine binary installed", "path", target)

	return nil
}

// stageAssets copies every required runtime asset from the extracted archive
// into the shared assets directory. A missing asset fails the build loudly.
func (r *runner) stageAssets(ctx context.Context) error {
	if err := os.MkdirAll(r.opts.AssetsDir, DefaultFileMode); err != nil {
		return err
	}

	for _, asset := range RuntimeAssets {
		extracted, err := findExtracted(r.scratchDir, asset)
		if err != nil {
			return err
		}

		target := filepath.Join(r.opts.AssetsDir, asset)
		if err = copyFile(extracted, target); err != nil {
			return fmt.Errorf("stage %s: %w", asset, err)
		}

		logger.InfoKV(ctx, "Runtime asset staged", "asset", asset, "path", target)
	}

	return nil
}

// cleanup removes the scratch directory and, unless asked to keep it, a
// fetched archive. A pre-staged archive is never deleted.
func (r *runner) cleanup(ctx context.Context) {
	if r.scratchDir != "" {
		if _, err := os.Stat(r.scratchDir); err == nil {
			_ = os.RemoveAll(r.scratchDir)
		}
	}

	if r.source == ArtifactFetched && !r.opts.KeepArchive && r.archivePath != "" {
		if _, err := os.Stat(r.archivePath); err == nil {
			_ = os.Remove(r.archivePath)
		}
	}

	logger.Debug(ctx, "Provisioner scratch space cleaned up")
}

// copyFile copies src to dst with asset permissions.
func copyFile(src, dst string) error {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}

	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(filepath.Clean(dst), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, assetFileMode)
	if err != nil {
		return err
	}

	_, err = io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}

	return err
}
