package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/broadcast-tools/playout-bootstrap/internal/logger"
	"github.com/broadcast-tools/playout-bootstrap/internal/service/provisioner"
	"github.com/broadcast-tools/playout-bootstrap/internal/version"
)

var (
	// platform is the target platform triple of the release archive.
	platform string
	// downloadDir is where a pre-staged archive is looked up and fetched ones land.
	downloadDir string
	// baseURL is the version-addressed release location.
	baseURL string
	// binDir is the executable search path the engine is installed into.
	binDir string
	// assetsDir is the shared directory runtime assets are staged into.
	assetsDir string
	// logLevel selects the minimum log level.
	logLevel string
	// keepArchive leaves a fetched archive on disk after staging.
	keepArchive bool
	// skipVerify disables sha256 sidecar verification.
	skipVerify bool

	// rootCmd represents the base command for provisioning the engine at image build time.
	rootCmd = &cobra.Command{
		Use:   "playout-provision <version>",
		Short: "Install a pinned playout engine release and its runtime assets.",
		Long: `Ensures the release archive for the given version is present (reusing a
pre-staged copy when one matches the expected filename, fetching it from the
release location otherwise), verifies it against its sha256 sidecar when one
is available, and stages the engine binary plus its runtime assets (font,
font license, placeholder caption track, logo) at fixed filesystem locations.

Intended to run once per image build. Any failure aborts with a non-zero
exit so no partial image is produced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			applyLogLevel()

			options := &provisioner.Options{
				Version:     args[0],
				Platform:    platform,
				DownloadDir: downloadDir,
				BaseURL:     baseURL,
				BinDir:      binDir,
				AssetsDir:   assetsDir,
				KeepArchive: keepArchive,
				SkipVerify:  skipVerify,
			}

			return provisioner.Run(ctx, options)
		},
	}
)

// Execute runs the playout-provision CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// applyLogLevel configures the global logger from the --log-level flag.
func applyLogLevel() {
	if level, ok := logger.ParseLogLevel(logLevel); ok {
		logger.SetLevel(level)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVar(&platform, "platform", provisioner.SupportedPlatform, "target platform triple")
	rootCmd.Flags().StringVarP(&downloadDir, "download-dir", "d", provisioner.DefaultDownloadDir,
		"directory holding a pre-staged archive, also where fetched archives land")
	rootCmd.Flags().StringVar(&baseURL, "base-url", provisioner.DefaultBaseURL, "release download location")
	rootCmd.Flags().StringVar(&binDir, "bin-dir", provisioner.DefaultBinDir, "directory to install the engine binary into")
	rootCmd.Flags().StringVar(&assetsDir, "assets-dir", provisioner.DefaultAssetsDir, "directory to stage runtime assets into")
	rootCmd.Flags().BoolVar(&keepArchive, "keep-archive", false, "keep a fetched archive after staging")
	rootCmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "skip sha256 sidecar verification")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "minimum log level (debug, info, warn, error)")
}
