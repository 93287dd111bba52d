// Package report implements the report command.
package report

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/ddharvester/cmd/common"
	"github.com/jonesrussell/ddharvester/internal/logger"
	reportpkg "github.com/jonesrussell/ddharvester/internal/report"
)

// Command returns the report command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write Markdown, JSON and Atom summaries of the harvested posts",
		Long: `Summarize the store over the last --days days: totals, flair breakdown,
top posts by score and the most cited domains. With --diff the report also
compares the last --week-len days with the period before.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := common.NewCommandDeps(cmd,
				common.FlagBinding{Flag: "out", Key: "report.out_dir"},
				common.FlagBinding{Flag: "days", Key: "report.window_days"},
				common.FlagBinding{Flag: "top-posts", Key: "report.top_posts"},
				common.FlagBinding{Flag: "top-domains", Key: "report.top_domains"},
				common.FlagBinding{Flag: "diff", Key: "report.diff"},
				common.FlagBinding{Flag: "week-len", Key: "report.week_len"},
			)
			if err != nil {
				return fmt.Errorf("failed to initialize dependencies: %w", err)
			}
			defer deps.Close()

			store, err := deps.OpenStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			cfg := deps.Config.Report.WithDefaults()
			r, err := reportpkg.NewBuilder(store.DB(), cfg).Build(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to build report: %w", err)
			}

			paths, err := reportpkg.Write(r, cfg.OutDir)
			if err != nil {
				return err
			}
			deps.Logger.Info("Report written",
				logger.String("markdown", paths.Markdown),
				logger.String("json", paths.JSON),
				logger.String("atom", paths.Atom),
			)
			fmt.Fprintln(cmd.OutOrStdout(), paths.Markdown)
			fmt.Fprintln(cmd.OutOrStdout(), paths.JSON)
			fmt.Fprintln(cmd.OutOrStdout(), paths.Atom)
			return nil
		},
	}

	cmd.Flags().String("out", reportpkg.DefaultOutDir, "output directory")
	cmd.Flags().Int("days", reportpkg.DefaultWindowDays, "report window in days")
	cmd.Flags().Int("top-posts", reportpkg.DefaultTopPosts, "number of top posts")
	cmd.Flags().Int("top-domains", reportpkg.DefaultTopDomains, "number of top domains")
	cmd.Flags().Bool("diff", false, "include a week-over-week diff")
	cmd.Flags().Int("week-len", reportpkg.DefaultWeekLen, "length of a diff period in days")
	return cmd
}
