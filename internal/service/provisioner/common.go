package provisioner

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"golang.org/x/mod/semver"
)

const (
	// EngineBinaryName is the playout engine executable shipped in release archives.
	EngineBinaryName = "ffplayout"

	// SupportedPlatform is the single platform triple this image targets.
	SupportedPlatform = "x86_64-unknown-linux-musl"

	// DefaultBaseURL is the version-addressed release location.
	DefaultBaseURL = "https://github.com/ffplayout/ffplayout/releases/download"

	// DefaultDownloadDir is where a pre-staged archive is looked up and
	// where a fetched one lands.
	DefaultDownloadDir = "."

	// DefaultBinDir is the executable search path the engine is installed into.
	DefaultBinDir = "/usr/local/bin"

	// DefaultAssetsDir is the shared directory for runtime assets.
	DefaultAssetsDir = "/usr/share/ffplayout"

	// DefaultFileMode is applied to the installed engine binary.
	DefaultFileMode = 0o755

	// assetFileMode is applied to staged runtime assets.
	assetFileMode = 0o644

	// checksumSuffix names the sha256 sidecar next to an archive.
	checksumSuffix = ".sha256"
)

// RuntimeAssets are the auxiliary files the engine expects in the shared
// assets directory: subtitle font, its license, the placeholder caption
// track and the default logo.
//
//nolint:gochecknoglobals // Fixed asset manifest of the release archive.
var RuntimeAssets = []string{
	"DejaVuSans.ttf",
	"FONT_LICENSE.txt",
	"dummy.vtt",
	"logo.png",
}

// ArchiveName composes the release archive filename for a version/platform
// pair, e.g. "ffplayout-v0.25.3_x86_64-unknown-linux-musl.tar.gz".
func ArchiveName(version, platform string) string {
	return fmt.Sprintf("%s-v%s_%s.tar.gz", EngineBinaryName, version, platform)
}

// normalizeVersion validates the pinned version as semver (with or without a
// leading "v") and returns it without the prefix, the form used in archive
// names and release paths.
func normalizeVersion(v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", errVersionRequired
	}

	norm := v
	if !strings.HasPrefix(norm, "v") {
		norm = "v" + norm
	}

	if !semver.IsValid(norm) {
		return "", fmt.Errorf("%w: %q", errInvalidVersion, v)
	}

	return strings.TrimPrefix(norm, "v"), nil
}

// releaseFileURL composes the download URL of a release file for the given
// version. path.Join normalizes duplicate slashes when composing the URL path.
func releaseFileURL(baseURL, version, filename string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse release base URL: %w", err)
	}

	u.Path = path.Join(u.Path, "v"+version, filename)

	return u.String(), nil
}
