// Package schedule implements the schedule command, which repeats full runs
// on a cron spec.
package schedule

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/ddharvester/cmd/common"
	"github.com/jonesrussell/ddharvester/cmd/crawl"
	"github.com/jonesrussell/ddharvester/internal/logger"
)

// Command returns the schedule command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the harvester on a cron schedule",
		Long: `Start a long-running scheduler that performs a full run on every tick
of the configured cron spec. A tick is skipped while the previous run is still
in progress. SIGINT or SIGTERM stop the scheduler once the current run ends.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bindings := append([]common.FlagBinding{{Flag: "cron", Key: "schedule.cron"}}, crawl.Bindings...)
			deps, err := common.NewCommandDeps(cmd, bindings...)
			if err != nil {
				return fmt.Errorf("failed to initialize dependencies: %w", err)
			}
			defer deps.Close()

			store, err := deps.OpenStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			src, err := deps.NewSource()
			if err != nil {
				return err
			}

			job := func(ctx context.Context) error {
				return crawl.Run(ctx, deps, store, src, "scheduled")
			}
			return Start(cmd.Context(), deps.Config.Schedule.Cron, job, deps.Logger)
		},
	}

	cmd.Flags().String("cron", "", "cron spec (five fields), overrides schedule.cron")
	crawl.AddFlags(cmd)
	return cmd
}

// Start runs job on spec until ctx is done, then waits for a running job to
// finish. Overlapping ticks are skipped and a panicking job is recovered.
func Start(ctx context.Context, spec string, job func(context.Context) error, log logger.Logger) error {
	cl := NewCronLogger(log)
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))

	// In-flight runs are not canceled on shutdown.
	runCtx := context.WithoutCancel(ctx)
	_, err := c.AddFunc(spec, func() {
		if runErr := job(runCtx); runErr != nil {
			log.Error("Scheduled run failed", logger.Error(runErr))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}

	log.Info("Scheduler started", logger.String("cron", spec))
	c.Start()

	<-ctx.Done()
	log.Info("Stopping scheduler, waiting for the current run")
	<-c.Stop().Done()
	log.Info("Scheduler stopped")
	return nil
}
