// Package serve provides the serve command, which runs the storage engine
// with its background maintenance loop until interrupted.
package serve

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/camf-project/camf-go/internal/archive"
	"github.com/camf-project/camf-go/internal/conf"
	"github.com/camf-project/camf-go/internal/logging"
	"github.com/camf-project/camf-go/internal/observability/metrics"
)

// Command creates and returns the serve command
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the storage engine and background maintenance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(settings)
		},
	}
}

func runServe(settings *conf.Settings) error {
	logger := logging.ForService("serve")

	m, err := metrics.NewStorageMetrics(prometheus.NewRegistry())
	if err != nil {
		return fmt.Errorf("failed to set up metrics: %w", err)
	}

	engine, err := archive.NewEngine(settings, m)
	if err != nil {
		return fmt.Errorf("failed to start storage engine: %w", err)
	}
	engine.Start()
	logger.Info("storage engine running",
		"basedir", settings.Storage.BaseDir, "db", settings.Output.SQLite.Path)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutdown signal received", "signal", sig.String())

	return engine.Close()
}
