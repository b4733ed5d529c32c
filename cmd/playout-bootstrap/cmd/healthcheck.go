package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/broadcast-tools/playout-bootstrap/internal/config"
	"github.com/broadcast-tools/playout-bootstrap/internal/service/health"
)

var (
	// healthListen is the engine bind address to probe.
	healthListen string
	// healthTimeout bounds a single probe.
	healthTimeout time.Duration

	// healthcheckCmd probes the engine's management endpoint.
	// Intended as the container HEALTHCHECK command.
	healthcheckCmd = &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe the running engine's management endpoint.",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			applyLogLevel()

			return health.Run(ctx, &health.Options{
				ListenAddress: healthListen,
				Timeout:       healthTimeout,
			})
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	healthcheckCmd.Flags().StringVarP(&healthListen, "listen", "l", config.DefaultListenAddress, "engine listen address to probe")
	healthcheckCmd.Flags().DurationVar(&healthTimeout, "timeout", health.DefaultTimeout, "probe timeout")

	rootCmd.AddCommand(healthcheckCmd)
}
