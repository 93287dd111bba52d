// Package runs implements the run history command.
package runs

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/ddharvester/cmd/common"
	"github.com/jonesrussell/ddharvester/internal/domain"
)

const defaultLimit = 20

// Command returns the runs command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show run history",
	}
	cmd.AddCommand(newListCmd())
	return cmd
}

func newListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
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

			runs, err := store.Repos().Runs.List(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}
			Render(os.Stdout, runs)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", defaultLimit, "maximum number of runs")
	return cmd
}

// Render writes runs as a table. Unfinished runs show "running" as their end.
func Render(w io.Writer, runs []domain.Run) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Run", "Started", "Ended", "Posts", "Hubs", "Done", "Errors", "Notes"})
	for _, r := range runs {
		ended := "running"
		if r.EndedAt != nil {
			ended = *r.EndedAt
		}
		t.AppendRow(table.Row{
			r.ID, r.StartedAt, ended,
			r.PostsInserted, r.HubsQueued, r.QueueDone, r.Errors,
			r.Notes,
		})
	}
	t.Render()
}
