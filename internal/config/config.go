package config

import (
	"errors"
	"fmt"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the bootstrap profile applied on first-run initialization of the
// playout engine, plus the parameters needed to launch it afterwards.
//
// Every field has a documented default and can be overridden either through
// an optional YAML file or through command-line flags. The profile is applied
// only on the Uninitialized -> Initialized transition; once the engine owns
// its state, later edits to this profile are never re-applied.
type Config struct {
	// AdminUsername is the administrator account created on first run.
	AdminUsername string `yaml:"admin_username"`
	// AdminPassword is the administrator password set on first run.
	AdminPassword string `yaml:"admin_password"`
	// AdminEmail is the administrator contact address.
	AdminEmail string `yaml:"admin_email"`

	// StorageDir is where the engine keeps media files.
	StorageDir string `yaml:"storage_dir"`
	// PlaylistsDir is where the engine keeps playlist files.
	PlaylistsDir string `yaml:"playlists_dir"`
	// PublicDir is where the engine writes public output (HLS segments etc.).
	PublicDir string `yaml:"public_dir"`
	// LogsDir is where the engine writes its own logs.
	LogsDir string `yaml:"logs_dir"`

	// MailSMTPServer is the outbound mail relay host.
	MailSMTPServer string `yaml:"mail_smtp_server"`
	// MailUser is the mail relay account.
	MailUser string `yaml:"mail_user"`
	// MailPassword is the mail relay password. Empty is allowed.
	MailPassword string `yaml:"mail_password"`
	// MailPort is the mail relay port.
	MailPort int `yaml:"mail_port"`
	// MailStartTLS enables STARTTLS towards the mail relay.
	MailStartTLS bool `yaml:"mail_starttls"`

	// ListenAddress is the host:port the engine binds its management
	// endpoint to when serving.
	ListenAddress string `yaml:"listen_address"`
	// EngineBinary is the engine executable, resolved via PATH when relative.
	EngineBinary string `yaml:"engine_binary"`
	// DatabaseDir is the durable storage directory holding the state marker.
	// It must be a mounted volume for initialization to survive restarts.
	DatabaseDir string `yaml:"database_dir"`
	// MarkerFilename is the file inside DatabaseDir whose presence signals
	// that first-run initialization has already completed.
	MarkerFilename string `yaml:"marker_filename"`
}

const (
	// DefaultAdminUsername is the administrator account created on first run.
	DefaultAdminUsername = "admin"
	// DefaultAdminPassword is the initial administrator password.
	DefaultAdminPassword = "admin"
	// DefaultAdminEmail is the initial administrator contact address.
	DefaultAdminEmail = "contact@example.com"

	// DefaultStorageDir is the media storage mount point.
	DefaultStorageDir = "/tv-media"
	// DefaultPlaylistsDir is the playlists mount point.
	DefaultPlaylistsDir = "/playlists"
	// DefaultPublicDir is the public output mount point.
	DefaultPublicDir = "/public"
	// DefaultLogsDir is the engine log mount point.
	DefaultLogsDir = "/logging"

	// DefaultMailSMTPServer is the placeholder outbound mail relay.
	DefaultMailSMTPServer = "mail.example.org"
	// DefaultMailUser is the placeholder mail relay account.
	DefaultMailUser = "admin@example.org"
	// DefaultMailPassword is the placeholder mail relay password.
	DefaultMailPassword = ""
	// DefaultMailPort is the implicit TLS submission port.
	DefaultMailPort = 465

	// DefaultListenAddress binds the engine on all interfaces.
	DefaultListenAddress = "0.0.0.0:8787"
	// DefaultEngineBinary is the engine executable name, found via PATH.
	DefaultEngineBinary = "ffplayout"
	// DefaultDatabaseDir is the durable storage mount point.
	DefaultDatabaseDir = "/db"
	// DefaultMarkerFilename is the engine database file created by
	// first-run initialization.
	DefaultMarkerFilename = "ffplayout.db"

	// DefaultConfigFilename is the default profile file looked up when no
	// explicit --config path is given.
	DefaultConfigFilename = "playout-bootstrap.yaml"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// maxTCPPort is the highest valid TCP port number.
	maxTCPPort = 65535
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errAdminUserRequired is returned when the administrator username is missing.
	errAdminUserRequired = errors.New("administrator username must be provided")
	// errAdminPasswordRequired is returned when the administrator password is missing.
	errAdminPasswordRequired = errors.New("administrator password must be provided")
	// errDirNotAbsolute is returned when a content directory is not an absolute path.
	errDirNotAbsolute = errors.New("directory must be an absolute path")
	// errEngineBinaryRequired is returned when the engine executable is missing.
	errEngineBinaryRequired = errors.New("engine binary must be provided")
	// errMarkerFilenameInvalid is returned when the marker filename is empty or nested.
	errMarkerFilenameInvalid = errors.New("marker filename must be a bare filename")
	// errMailPortOutOfRange is returned when the mail relay port is not a valid TCP port.
	errMailPortOutOfRange = errors.New("mail port must be between 1 and 65535")
)

// Default returns a profile populated with every documented default.
func Default() *Config {
	return &Config{
		AdminUsername:  DefaultAdminUsername,
		AdminPassword:  DefaultAdminPassword,
		AdminEmail:     DefaultAdminEmail,
		StorageDir:     DefaultStorageDir,
		PlaylistsDir:   DefaultPlaylistsDir,
		PublicDir:      DefaultPublicDir,
		LogsDir:        DefaultLogsDir,
		MailSMTPServer: DefaultMailSMTPServer,
		MailUser:       DefaultMailUser,
		MailPassword:   DefaultMailPassword,
		MailPort:       DefaultMailPort,
		MailStartTLS:   false,
		ListenAddress:  DefaultListenAddress,
		EngineBinary:   DefaultEngineBinary,
		DatabaseDir:    DefaultDatabaseDir,
		MarkerFilename: DefaultMarkerFilename,
	}
}

// Load reads the profile from the provided path, layered over defaults, and
// validates it. An empty path yields the plain defaults, so a container can
// run without any profile file at all.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}

	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the profile to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	// Restrict permissions, the profile carries credentials.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}

	return nil
}

// Validate checks the profile for required fields and formatting.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if strings.TrimSpace(cfg.AdminUsername) == "" {
		return errAdminUserRequired
	}

	if cfg.AdminPassword == "" {
		return errAdminPasswordRequired
	}

	if _, err := mail.ParseAddress(cfg.AdminEmail); err != nil {
		return fmt.Errorf("invalid administrator email %q: %w", cfg.AdminEmail, err)
	}

	if err := validateDirs(cfg); err != nil {
		return err
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", cfg.ListenAddress, err)
	}

	if strings.TrimSpace(cfg.EngineBinary) == "" {
		return errEngineBinaryRequired
	}

	if cfg.MarkerFilename == "" || cfg.MarkerFilename != filepath.Base(cfg.MarkerFilename) {
		return fmt.Errorf("%q: %w", cfg.MarkerFilename, errMarkerFilenameInvalid)
	}

	if cfg.MailPort < 1 || cfg.MailPort > maxTCPPort {
		return fmt.Errorf("%d: %w", cfg.MailPort, errMailPortOutOfRange)
	}

	return nil
}

// MarkerPath returns the full path of the state-marker file.
func (c *Config) MarkerPath() string {
	return filepath.Join(c.DatabaseDir, c.MarkerFilename)
}

// validateDirs ensures every directory the profile names is absolute, so the
// engine never resolves content paths relative to the bootstrap working directory.
func validateDirs(cfg *Config) error {
	dirs := map[string]string{
		"storage":   cfg.StorageDir,
		"playlists": cfg.PlaylistsDir,
		"public":    cfg.PublicDir,
		"logs":      cfg.LogsDir,
		"database":  cfg.DatabaseDir,
	}

	for name, dir := range dirs {
		if !filepath.IsAbs(dir) {
			return fmt.Errorf("%s directory %q: %w", name, dir, errDirNotAbsolute)
		}
	}

	return nil
}
