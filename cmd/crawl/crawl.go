// Package crawl implements the crawl command: one full harvesting run.
package crawl

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/ddharvester/cmd/common"
	"github.com/jonesrussell/ddharvester/internal/budget"
	"github.com/jonesrussell/ddharvester/internal/database"
	"github.com/jonesrussell/ddharvester/internal/ingest"
	"github.com/jonesrussell/ddharvester/internal/logger"
	"github.com/jonesrussell/ddharvester/internal/source"
	"github.com/jonesrussell/ddharvester/internal/telemetry"
)

// Bindings maps the run control flags onto config keys. The schedule command
// reuses them.
var Bindings = []common.FlagBinding{
	{Flag: "sleep", Key: "crawler.sleep"},
	{Flag: "max-minutes", Key: "crawler.max_minutes"},
	{Flag: "recrawl-hubs", Key: "crawler.recrawl_hubs"},
}

// AddFlags registers the run control flags on cmd.
func AddFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("sleep", budget.DefaultDelay, "pause after every examined item")
	cmd.Flags().Float64("max-minutes", 0, "stop starting new work after this many minutes (0 = unbounded)")
	cmd.Flags().Bool("recrawl-hubs", false, "requeue every hub item before crawling")
}

// Command returns the crawl command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run the flair scan, hub discovery and queue crawl once",
		Long: `Run one harvesting pass. Posts with the configured flairs are stored,
hub posts are queued, and the crawl queue is drained until it is empty or the
--max-minutes budget is spent. Work left over stays queued for the next run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := common.NewCommandDeps(cmd, Bindings...)
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

			return Run(cmd.Context(), deps, store, src, "crawl")
		},
	}
	AddFlags(cmd)
	return cmd
}

// Run executes one pipeline run with a fresh budget and recorder.
func Run(ctx context.Context, deps *common.CommandDeps, store *database.Store, src source.ContentSource, notes string) error {
	cfg := deps.Config

	ctrl := budget.New(cfg.Crawler.MaxDuration(), cfg.Crawler.Sleep)
	if deadline, ok := ctrl.Deadline(); ok {
		deps.Logger.Info("Run deadline set", logger.Time("deadline", deadline))
	}

	var recOpts []telemetry.RecorderOption
	if cfg.Telemetry.TextfilePath != "" {
		recOpts = append(recOpts, telemetry.WithTextfile(cfg.Telemetry.TextfilePath))
	}
	rec := telemetry.NewRecorder(store.Repos().Runs, deps.Logger, recOpts...)

	pipeline := ingest.New(cfg.Crawler.Config, src, store, ctrl, rec, deps.Logger)
	return pipeline.Run(ctx, ingest.RunOptions{
		Notes:       notes,
		RecrawlHubs: cfg.Crawler.RecrawlHubs,
	})
}
