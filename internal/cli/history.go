// internal/cli/history.go
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/law-makers/tablecrawl/internal/history"
	"github.com/law-makers/tablecrawl/internal/ui"
	"github.com/spf13/cobra"
)

var historyLimit int

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded extraction runs",
	Example: `  # Last 20 runs
  tablecrawl history

  # Last 100 runs
  tablecrawl history --limit 100`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := mustApp(cmd)
	if err != nil {
		return err
	}

	store, err := a.History()
	if err != nil {
		return err
	}
	runs, err := store.List(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("\nNo runs recorded yet.")
		fmt.Println("\nExtract a table with:")
		fmt.Println("  tablecrawl wiki")
		fmt.Println()
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Started", "Source", "Status", "Rows", "Cols", "Duration", "Output", "URL"})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Source,
			statusCell(r.Status),
			r.Rows,
			r.Columns,
			r.Duration().Round(time.Millisecond),
			r.OutputPath,
			r.URL,
		})
	}
	t.SetStyle(table.StyleRounded)
	fmt.Println()
	t.Render()
	fmt.Println()
	return nil
}

func statusCell(status string) string {
	if status == history.StatusOK {
		return ui.Success(status)
	}
	return ui.Error(status)
}
