// Package cmd implements the command-line interface for ddharvester.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/ddharvester/cmd/common"
	configcmd "github.com/jonesrussell/ddharvester/cmd/config"
	"github.com/jonesrussell/ddharvester/cmd/crawl"
	"github.com/jonesrussell/ddharvester/cmd/queue"
	"github.com/jonesrussell/ddharvester/cmd/report"
	"github.com/jonesrussell/ddharvester/cmd/runs"
	"github.com/jonesrussell/ddharvester/cmd/schedule"
)

// Version is set at build time with -ldflags "-X ...cmd.Version=...".
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "ddharvester",
	Short: "Harvest due diligence posts and their links from a subreddit",
	Long: `ddharvester stores flaired posts and every link they contain, follows
links found in curated hub posts through a depth-bounded crawl queue, and
reports on what it has collected.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context; a running crawl stops starting new work and finalizes its run.
func Execute() error {
	// A missing .env file is fine; the environment and config file still apply.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&common.ConfigFile,
		"config",
		"",
		"config file (default is ./config.yaml or ./config/config.yaml)",
	)
	rootCmd.PersistentFlags().BoolVarP(&common.Verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ddharvester version %s\n", Version)
		},
	})

	rootCmd.AddCommand(
		crawl.Command(),
		queue.Command(),
		runs.Command(),
		report.Command(),
		schedule.Command(),
		configcmd.Command(),
	)
}
