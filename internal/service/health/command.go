package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/broadcast-tools/playout-bootstrap/internal/logger"
)

var errUnhealthy = errors.New("engine reported server error")

// DefaultTimeout bounds a single probe.
const DefaultTimeout = 5 * time.Second

// Options are inputs accepted by the healthcheck entry point.
type Options struct {
	// ListenAddress is the engine's bind address from the profile.
	ListenAddress string
	// Timeout bounds the whole probe.
	Timeout time.Duration
}

// Run probes the engine's management endpoint once and returns a non-nil
// error when the engine is unreachable or answers with a server error.
// Intended as a container HEALTHCHECK command.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "healthcheck")

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	probeURL, err := ProbeURL(opts.ListenAddress)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, http.NoBody)
	if err != nil {
		return err
	}

	response, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", probeURL, err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%s: %s: %w", probeURL, response.Status, errUnhealthy)
	}

	logger.InfoKV(ctx, "Engine is healthy", "url", probeURL, "status", response.Status)

	return nil
}

// ProbeURL converts the engine's bind address into a dialable probe URL.
// Wildcard binds are probed over loopback.
func ProbeURL(listenAddress string) (string, error) {
	host, port, err := net.SplitHostPort(listenAddress)
	if err != nil {
		return "", fmt.Errorf("invalid listen address %q: %w", listenAddress, err)
	}

	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}

	return fmt.Sprintf("http://%s/", net.JoinHostPort(host, port)), nil
}
