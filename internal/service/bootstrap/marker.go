package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// InitLockFilename marks that first-run initialization is in progress, so a
// second orchestrator racing against the same durable storage fails fast
// instead of double-initializing.
const InitLockFilename = ".playout-init.lock"

// markerExists reports whether the state-marker file is present.
func markerExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}

	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	return false, fmt.Errorf("check state marker: %w", err)
}

// initLock is an exclusively-created lock file held for the whole duration
// of first-run initialization.
type initLock struct {
	path string
}

// acquireInitLock atomically creates the lock file inside the durable
// storage directory. Creation fails with errInitInProgress when another
// orchestrator already holds it.
func acquireInitLock(dir string) (*initLock, error) {
	path := filepath.Join(dir, InitLockFilename)

	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%s: %w", path, errInitInProgress)
		}

		return nil, fmt.Errorf("create init lock: %w", err)
	}

	// The owning PID helps an operator diagnose an abandoned lock.
	_, writeErr := f.WriteString(strconv.Itoa(os.Getpid()))
	if closeErr := f.Close(); writeErr == nil {
		writeErr = closeErr
	}

	if writeErr != nil {
		_ = os.Remove(path)

		return nil, fmt.Errorf("write init lock: %w", writeErr)
	}

	return &initLock{path: path}, nil
}

// release removes the lock file. Safe to call more than once.
func (l *initLock) release() {
	if l == nil {
		return
	}

	if _, err := os.Stat(l.path); err == nil {
		_ = os.Remove(l.path)
	}
}
