package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/mitchellh/go-ps"
	"golang.org/x/sys/unix"

	"github.com/broadcast-tools/playout-bootstrap/internal/config"
	"github.com/broadcast-tools/playout-bootstrap/internal/logger"
)

var (
	errInitInProgress       = errors.New("initialization already in progress")
	errEngineAlreadyRunning = errors.New("engine process is already running")
)

// Options are inputs accepted by the orchestrator entry point.
type Options struct {
	// ConfigPath is the optional path to the profile YAML file.
	ConfigPath string
	// Config overrides ConfigPath when provided, e.g. after flag merging.
	Config *config.Config
}

// commandRunner executes the one-time initialization command. Production
// uses exec with inherited stdio; tests inject fakes.
type commandRunner func(ctx context.Context, name string, args ...string) error

// execStarter replaces the current process image with the engine. It does
// not return on success.
type execStarter func(argv0 string, argv, envv []string) error

// processLister enumerates running processes for the pre-exec guard.
type processLister func() ([]ps.Process, error)

// runner holds the state and seams for a single orchestrator execution.
// It is intentionally unexported—call Run(ctx, Options) from callers.
type runner struct {
	cfg           *config.Config
	runCommand    commandRunner
	execServer    execStarter
	listProcesses processLister
	lookPath      func(file string) (string, error)
	acquireLock   func(dir string) (*initLock, error)
}

// Run executes the orchestrator lifecycle and is the public entry point for
// the CLI: ensure the engine's persistent state exists exactly once, then
// hand the process over to the engine bound to the configured address.
// On success this function never returns.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "playout-bootstrap")

	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return fmt.Errorf("load profile: %w", err)
		}

		cfg = loaded
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("validate profile: %w", err)
	}

	return newRunner(cfg).run(ctx)
}

// newRunner wires the production seams.
func newRunner(cfg *config.Config) *runner {
	return &runner{
		cfg:           cfg,
		runCommand:    runWithInheritedStdio,
		execServer:    unix.Exec,
		listProcesses: ps.Processes,
		lookPath:      exec.LookPath,
		acquireLock:   acquireInitLock,
	}
}

// run performs the two sequential phases: conditional initialization, then
// the serving hand-off. Initialization, if it happens, strictly precedes the
// server start within the same invocation.
func (r *runner) run(ctx context.Context) error {
	if err := r.ensureInitialized(ctx); err != nil {
		return err
	}

	return r.startServer(ctx)
}

// ensureInitialized drives the Uninitialized -> Initialized transition. The
// presence of the state marker is the sole signal that initialization has
// completed; when it is absent, the transition runs under an exclusive lock
// so concurrent first runs against the same storage cannot interleave.
func (r *runner) ensureInitialized(ctx context.Context) error {
	markerPath := r.cfg.MarkerPath()

	initialized, err := markerExists(markerPath)
	if err != nil {
		return err
	}

	if initialized {
		logger.InfoKV(ctx, "Persistent state already initialized, skipping setup", "marker", markerPath)

		return nil
	}

	if err = os.MkdirAll(r.cfg.DatabaseDir, 0o755); err != nil {
		return fmt.Errorf("create durable storage directory: %w", err)
	}

	lock, err := r.acquireLock(r.cfg.DatabaseDir)
	if err != nil {
		return err
	}

	defer lock.release()

	// Another orchestrator may have completed initialization and released
	// the lock between the check above and our acquisition. The marker
	// decides, so re-check it now that we hold the lock.
	initialized, err = markerExists(markerPath)
	if err != nil {
		return err
	}

	if initialized {
		logger.InfoKV(ctx, "Persistent state initialized concurrently, skipping setup", "marker", markerPath)

		return nil
	}

	logger.InfoKV(ctx, "Running one-time initialization", "marker", markerPath)

	if err = r.runCommand(ctx, r.cfg.EngineBinary, initArgs(r.cfg)...); err != nil {
		// Never leave a partially-created marker behind: the next start
		// must retry from Uninitialized, not serve incomplete state.
		if exists, _ := markerExists(markerPath); exists {
			_ = os.Remove(markerPath)
		}

		return fmt.Errorf("initialize engine state: %w", err)
	}

	logger.Info(ctx, "Initialization completed")

	return nil
}

// startServer hands the process image over to the engine after checking no
// other engine instance is already running on this host.
func (r *runner) startServer(ctx context.Context) error {
	if err := r.ensureEngineNotRunning(); err != nil {
		return err
	}

	enginePath, err := r.lookPath(r.cfg.EngineBinary)
	if err != nil {
		return fmt.Errorf("locate engine binary: %w", err)
	}

	logger.InfoKV(ctx, "Starting playout engine", "binary", enginePath, "listen", r.cfg.ListenAddress)

	argv := []string{filepath.Base(enginePath), "-l", r.cfg.ListenAddress}

	// The engine becomes the container's foreground process: it inherits the
	// PID, receives runtime signals directly, and its exit status is the
	// container's exit status. This call does not return on success.
	if err = r.execServer(enginePath, argv, os.Environ()); err != nil {
		return fmt.Errorf("exec engine: %w", err)
	}

	return nil
}

// ensureEngineNotRunning refuses the hand-off when an engine process is
// already active, since two instances against the same storage would corrupt it.
func (r *runner) ensureEngineNotRunning() error {
	processList, err := r.listProcesses()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	engineName := filepath.Base(r.cfg.EngineBinary)
	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() == engineName {
			return fmt.Errorf("pid %d: %w", process.Pid(), errEngineAlreadyRunning)
		}
	}

	return nil
}

// initArgs builds the fixed one-time initialization command line from the profile.
func initArgs(cfg *config.Config) []string {
	args := []string{
		"-i",
		"-u", cfg.AdminUsername,
		"-p", cfg.AdminPassword,
		"-m", cfg.AdminEmail,
		"--storage", cfg.StorageDir,
		"--playlists", cfg.PlaylistsDir,
		"--public", cfg.PublicDir,
		"--logs", cfg.LogsDir,
		"--mail-smtp", cfg.MailSMTPServer,
		"--mail-user", cfg.MailUser,
		"--mail-password", cfg.MailPassword,
		"--mail-port", strconv.Itoa(cfg.MailPort),
	}

	if cfg.MailStartTLS {
		args = append(args, "--mail-starttls")
	}

	return args
}

// runWithInheritedStdio runs a command with the orchestrator's stdio so the
// engine's initialization output lands in the container logs.
func runWithInheritedStdio(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}
