// Package maintain provides the maintain command for running maintenance
// tasks immediately instead of waiting for the background schedule.
package maintain

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/camf-project/camf-go/internal/archive"
	"github.com/camf-project/camf-go/internal/conf"
	"github.com/camf-project/camf-go/internal/maintenance"
)

// Command creates and returns the maintain command
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "maintain [task...]",
		Short: "Run database maintenance tasks immediately",
		Long: `Runs the given maintenance tasks (compact, refresh_statistics,
orphan_sweep) against the archive database and exits. With no arguments
all tasks are run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMaintain(settings, args)
		},
	}
}

func runMaintain(settings *conf.Settings, args []string) error {
	engine, err := archive.NewEngine(settings, nil)
	if err != nil {
		return fmt.Errorf("failed to open storage engine: %w", err)
	}
	defer engine.Close()

	tasks := []maintenance.Task{
		maintenance.TaskCompact,
		maintenance.TaskRefreshStatistics,
		maintenance.TaskOrphanSweep,
	}
	if len(args) > 0 {
		tasks = tasks[:0]
		for _, arg := range args {
			tasks = append(tasks, maintenance.Task(strings.ToLower(arg)))
		}
	}

	if err := engine.RunMaintenance(tasks...); err != nil {
		return fmt.Errorf("maintenance failed: %w", err)
	}
	return nil
}
