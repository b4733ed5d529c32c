package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/broadcast-tools/playout-bootstrap/internal/config"
	"github.com/broadcast-tools/playout-bootstrap/internal/logger"
	"github.com/broadcast-tools/playout-bootstrap/internal/service/bootstrap"
	"github.com/broadcast-tools/playout-bootstrap/internal/version"
)

var (
	// configPath to the optional profile YAML file.
	configPath string
	// logLevel selects the minimum log level.
	logLevel string
	// profile collects flag overrides layered over the loaded profile.
	profile = config.Default()

	// rootCmd represents the base command that initializes persistent state
	// once and then hands the container over to the playout engine.
	rootCmd = &cobra.Command{
		Use:   "playout-bootstrap",
		Short: "Initialize the playout engine on first run, then start it in the foreground.",
		Long: `On every container start, checks whether the engine's persistent state
already exists in the durable storage directory. When it does not, performs
one-time initialization with the configured profile under an exclusive lock.
Afterwards the engine is exec'd bound to the configured listen address and
becomes the container's foreground process.

Repeated restarts with existing durable storage skip initialization entirely,
so changes made through the engine itself are never clobbered.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			applyLogLevel()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			applyFlagOverrides(cmd, cfg)

			return bootstrap.Run(ctx, &bootstrap.Options{Config: cfg})
		},
	}
)

// Execute runs the playout-bootstrap CLI and exits with non-zero status on error.
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

// applyFlagOverrides copies explicitly set flags over the loaded profile,
// so precedence is flags > profile file > defaults.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	overrides := map[string]func(){
		"admin-user":     func() { cfg.AdminUsername = profile.AdminUsername },
		"admin-password": func() { cfg.AdminPassword = profile.AdminPassword },
		"admin-email":    func() { cfg.AdminEmail = profile.AdminEmail },
		"storage":        func() { cfg.StorageDir = profile.StorageDir },
		"playlists":      func() { cfg.PlaylistsDir = profile.PlaylistsDir },
		"public":         func() { cfg.PublicDir = profile.PublicDir },
		"logs":           func() { cfg.LogsDir = profile.LogsDir },
		"mail-smtp":      func() { cfg.MailSMTPServer = profile.MailSMTPServer },
		"mail-user":      func() { cfg.MailUser = profile.MailUser },
		"mail-password":  func() { cfg.MailPassword = profile.MailPassword },
		"mail-port":      func() { cfg.MailPort = profile.MailPort },
		"mail-starttls":  func() { cfg.MailStartTLS = profile.MailStartTLS },
		"listen":         func() { cfg.ListenAddress = profile.ListenAddress },
		"engine":         func() { cfg.EngineBinary = profile.EngineBinary },
		"db-dir":         func() { cfg.DatabaseDir = profile.DatabaseDir },
		"marker":         func() { cfg.MarkerFilename = profile.MarkerFilename },
	}

	for name, apply := range overrides {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	flags := rootCmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "path to profile YAML file (defaults apply when omitted)")
	flags.StringVar(&logLevel, "log-level", "info", "minimum log level (debug, info, warn, error)")

	flags.StringVar(&profile.AdminUsername, "admin-user", config.DefaultAdminUsername, "administrator username applied on first run")
	flags.StringVar(&profile.AdminPassword, "admin-password", config.DefaultAdminPassword, "administrator password applied on first run")
	flags.StringVar(&profile.AdminEmail, "admin-email", config.DefaultAdminEmail, "administrator contact email")
	flags.StringVar(&profile.StorageDir, "storage", config.DefaultStorageDir, "media storage directory")
	flags.StringVar(&profile.PlaylistsDir, "playlists", config.DefaultPlaylistsDir, "playlists directory")
	flags.StringVar(&profile.PublicDir, "public", config.DefaultPublicDir, "public output directory")
	flags.StringVar(&profile.LogsDir, "logs", config.DefaultLogsDir, "engine log directory")
	flags.StringVar(&profile.MailSMTPServer, "mail-smtp", config.DefaultMailSMTPServer, "outbound mail relay host")
	flags.StringVar(&profile.MailUser, "mail-user", config.DefaultMailUser, "mail relay account")
	flags.StringVar(&profile.MailPassword, "mail-password", config.DefaultMailPassword, "mail relay password")
	flags.IntVar(&profile.MailPort, "mail-port", config.DefaultMailPort, "mail relay port")
	flags.BoolVar(&profile.MailStartTLS, "mail-starttls", false, "enable STARTTLS towards the mail relay")
	flags.StringVarP(&profile.ListenAddress, "listen", "l", config.DefaultListenAddress, "engine listen address")
	flags.StringVar(&profile.EngineBinary, "engine", config.DefaultEngineBinary, "engine executable, resolved via PATH when relative")
	flags.StringVar(&profile.DatabaseDir, "db-dir", config.DefaultDatabaseDir, "durable storage directory holding the state marker")
	flags.StringVar(&profile.MarkerFilename, "marker", config.DefaultMarkerFilename, "state-marker filename inside the durable storage directory")
}
