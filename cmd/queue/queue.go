// Package queue implements the queue inspection and maintenance commands.
package queue

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/ddharvester/cmd/common"
	"github.com/jonesrussell/ddharvester/internal/domain"
	"github.com/jonesrussell/ddharvester/internal/frontier"
	"github.com/jonesrussell/ddharvester/internal/logger"
)

const defaultListLimit = 50

// Command returns the queue command and its subcommands.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and maintain the crawl queue",
	}
	cmd.AddCommand(newStatsCmd(), newListCmd(), newRequeueHubsCmd())
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the queue status breakdown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := common.NewCommandDeps(cmd)
			if err != nil {
				return err
			}
			defer deps.Close()

			store, err := deps.OpenStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			stats, err := store.Repos().Queue.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read queue stats: %w", err)
			}
			RenderStats(os.Stdout, stats)
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	var (
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch status {
			case "", domain.QueueStatusQueued, domain.QueueStatusDone, domain.QueueStatusError:
			default:
				return fmt.Errorf("unknown status %q", status)
			}

			deps, err := common.NewCommandDeps(cmd)
			if err != nil {
				return err
			}
			defer deps.Close()

			store, err := deps.OpenStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			items, err := store.Repos().Queue.List(cmd.Context(), status, limit)
			if err != nil {
				return fmt.Errorf("failed to list queue items: %w", err)
			}
			if len(items) == 0 {
				deps.Logger.Info("No queue items", logger.String("status", status))
				return nil
			}
			RenderItems(os.Stdout, items)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (queued, done, error)")
	cmd.Flags().IntVar(&limit, "limit", defaultListLimit, "maximum number of items")
	return cmd
}

func newRequeueHubsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requeue-hubs",
		Short: "Reset every hub item to queued so it is crawled again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := common.NewCommandDeps(cmd)
			if err != nil {
				return err
			}
			defer deps.Close()

			store, err := deps.OpenStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			q := frontier.New(store.Repos().Queue, frontier.Config{})
			n, err := q.RequeueHubs(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to requeue hubs: %w", err)
			}
			deps.Logger.Info("Requeued hubs", logger.Int64("count", n))
			return nil
		},
	}
}

// RenderStats writes the status breakdown as a table.
func RenderStats(w io.Writer, stats domain.QueueStats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Status", "Items"})
	t.AppendRows([]table.Row{
		{domain.QueueStatusQueued, stats.Queued},
		{domain.QueueStatusDone, stats.Done},
		{domain.QueueStatusError, stats.Error},
	})
	t.AppendFooter(table.Row{"Total", stats.Total()})
	t.Render()
}

// RenderItems writes queue items as a table.
func RenderItems(w io.Writer, items []domain.QueueItem) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Key", "Status", "Depth", "Hub", "Added", "URL", "Last Error"})
	for _, item := range items {
		lastErr := ""
		if item.LastError != nil {
			lastErr = *item.LastError
		}
		t.AppendRow(table.Row{item.Key, item.Status, item.Depth, item.IsHub, item.AddedAt, item.URL, lastErr})
	}
	t.Render()
}
