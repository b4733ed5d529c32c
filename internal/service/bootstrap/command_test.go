package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mitchellh/go-ps"
	"github.com/stretchr/testify/require"

	"github.com/broadcast-tools/playout-bootstrap/internal/config"
)

// fakeProcess implements ps.Process for the pre-exec guard tests.
type fakeProcess struct {
	pid  int
	name string
}

func (p fakeProcess) Pid() int           { return p.pid }
func (p fakeProcess) PPid() int          { return 0 }
func (p fakeProcess) Executable() string { return p.name }

// orchestrator bundles a runner with recorders for its injected seams.
type orchestrator struct {
	runner    *runner
	initCalls [][]string
	execCalls [][]string
}

// newTestOrchestrator builds a runner whose durable storage lives in the
// test's temp space and whose seams only record invocations. onInit, when
// not nil, simulates the engine's initialization side effects.
func newTestOrchestrator(t *testing.T, onInit func() error) *orchestrator {
	t.Helper()

	cfg := config.Default()
	cfg.DatabaseDir = t.TempDir()

	o := &orchestrator{}
	o.runner = &runner{
		cfg: cfg,
		runCommand: func(_ context.Context, name string, args ...string) error {
			o.initCalls = append(o.initCalls, append([]string{name}, args...))
			if onInit != nil {
				return onInit()
			}

			return nil
		},
		execServer: func(argv0 string, argv, _ []string) error {
			o.execCalls = append(o.execCalls, append([]string{argv0}, argv...))

			return nil
		},
		listProcesses: func() ([]ps.Process, error) { return nil, nil },
		lookPath:      func(file string) (string, error) { return "/usr/local/bin/" + file, nil },
		acquireLock:   acquireInitLock,
	}

	return o
}

// touchMarker creates the state-marker file, simulating completed initialization.
func touchMarker(t *testing.T, cfg *config.Config) {
	t.Helper()

	require.NoError(t, os.WriteFile(cfg.MarkerPath(), []byte("db"), 0o644))
}

// TestRun_FirstRunInitializesThenServes covers the Uninitialized ->
// Initialized -> Serving path: initialization runs exactly once with the
// full fixed profile, then the engine is exec'd.
func TestRun_FirstRunInitializesThenServes(t *testing.T) {
	t.Parallel()

	var o *orchestrator

	o = newTestOrchestrator(t, func() error {
		touchMarker(t, o.runner.cfg)

		return nil
	})

	require.NoError(t, o.runner.run(context.Background()))

	require.Len(t, o.initCalls, 1)
	require.Equal(t, append([]string{o.runner.cfg.EngineBinary}, initArgs(o.runner.cfg)...), o.initCalls[0])

	require.Len(t, o.execCalls, 1)
	require.Equal(t,
		[]string{"/usr/local/bin/ffplayout", "ffplayout", "-l", config.DefaultListenAddress},
		o.execCalls[0])

	// The marker survives and the init lock is gone.
	exists, err := markerExists(o.runner.cfg.MarkerPath())
	require.NoError(t, err)
	require.True(t, exists)

	_, err = os.Stat(filepath.Join(o.runner.cfg.DatabaseDir, InitLockFilename))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestRun_MarkerPresentSkipsInitialization covers idempotence: with the
// marker already present, any number of runs never re-invoke initialization.
func TestRun_MarkerPresentSkipsInitialization(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, nil)
	touchMarker(t, o.runner.cfg)

	for i := 0; i < 3; i++ {
		require.NoError(t, o.runner.run(context.Background()))
	}

	require.Empty(t, o.initCalls)
	require.Len(t, o.execCalls, 3)
}

// TestRun_InitFailureContainment ensures a failed initialization leaves no
// marker behind, removes the lock, and never reaches the serving transition.
func TestRun_InitFailureContainment(t *testing.T) {
	t.Parallel()

	initErr := errors.New("mail relay unreachable")

	var o *orchestrator

	o = newTestOrchestrator(t, func() error {
		// Simulate the engine dying after partially creating its state.
		touchMarker(t, o.runner.cfg)

		return initErr
	})

	err := o.runner.run(context.Background())
	require.ErrorIs(t, err, initErr)

	require.Empty(t, o.execCalls)

	exists, err := markerExists(o.runner.cfg.MarkerPath())
	require.NoError(t, err)
	require.False(t, exists)

	_, err = os.Stat(filepath.Join(o.runner.cfg.DatabaseDir, InitLockFilename))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestRun_ConcurrentFirstRunFailsFast ensures a held init lock aborts the
// run instead of racing the other instance.
func TestRun_ConcurrentFirstRunFailsFast(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, nil)

	lockPath := filepath.Join(o.runner.cfg.DatabaseDir, InitLockFilename)
	require.NoError(t, os.WriteFile(lockPath, []byte("1234"), 0o600))

	err := o.runner.run(context.Background())
	require.ErrorIs(t, err, errInitInProgress)
	require.Empty(t, o.initCalls)
	require.Empty(t, o.execCalls)
}

// TestRun_LostFirstRunRaceSkipsInitialization covers the interleaving where
// another orchestrator finishes initialization and releases the lock between
// this one's marker check and its lock acquisition: the marker re-check under
// the lock must win, so initialization never runs twice.
func TestRun_LostFirstRunRaceSkipsInitialization(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, nil)

	o.runner.acquireLock = func(dir string) (*initLock, error) {
		// The other instance completes while we were waiting to lock.
		touchMarker(t, o.runner.cfg)

		return acquireInitLock(dir)
	}

	require.NoError(t, o.runner.run(context.Background()))

	require.Empty(t, o.initCalls)
	require.Len(t, o.execCalls, 1)

	_, err := os.Stat(filepath.Join(o.runner.cfg.DatabaseDir, InitLockFilename))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestRun_RefusesWhenEngineAlreadyRunning covers the pre-exec guard.
func TestRun_RefusesWhenEngineAlreadyRunning(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, nil)
	touchMarker(t, o.runner.cfg)

	o.runner.listProcesses = func() ([]ps.Process, error) {
		return []ps.Process{fakeProcess{pid: 4242, name: "ffplayout"}}, nil
	}

	err := o.runner.run(context.Background())
	require.ErrorIs(t, err, errEngineAlreadyRunning)
	require.Empty(t, o.execCalls)
}

// TestInitArgs pins the fixed initialization command surface.
func TestInitArgs(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	args := initArgs(cfg)

	require.Equal(t, []string{
		"-i",
		"-u", "admin",
		"-p", "admin",
		"-m", "contact@example.com",
		"--storage", "/tv-media",
		"--playlists", "/playlists",
		"--public", "/public",
		"--logs", "/logging",
		"--mail-smtp", "mail.example.org",
		"--mail-user", "admin@example.org",
		"--mail-password", "",
		"--mail-port", "465",
	}, args)

	cfg.MailStartTLS = true
	require.Equal(t, "--mail-starttls", initArgs(cfg)[len(initArgs(cfg))-1])
}
