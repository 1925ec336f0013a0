package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/law-makers/tablecrawl/internal/ui"
	"github.com/law-makers/tablecrawl/pkg/models"
)

const divider = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// renderTable writes t as a rounded terminal table. At most limit rows are
// shown when limit is positive.
func renderTable(w io.Writer, t *models.Table, limit int) {
	if t.Empty() {
		return
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)

	header := make(table.Row, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	tw.AppendHeader(header)

	shown := t.Rows
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	for _, r := range shown {
		row := make(table.Row, len(r))
		for i, c := range r {
			row[i] = c
		}
		tw.AppendRow(row)
	}
	if hidden := len(t.Rows) - len(shown); hidden > 0 {
		tw.AppendFooter(table.Row{fmt.Sprintf("... %d more rows", hidden)})
	}

	tw.SetStyle(table.StyleRounded)
	tw.Render()
}

// printResult prints the outcome line of a finished run.
func printResult(w io.Writer, r *models.Result) {
	fmt.Fprintln(w)
	if r.Table.Empty() {
		fmt.Fprintf(w, "%s\n", ui.Info("No data extracted, nothing saved."))
		return
	}
	fmt.Fprintf(w, "%s %d rows × %d columns in %s\n",
		ui.Success("✓"), r.Table.Len(), len(r.Table.Columns), r.Duration.Round(time.Millisecond))
	if r.OutputPath != "" {
		fmt.Fprintf(w, "  Saved to: %s\n", ui.Bold(r.OutputPath))
	}
	fmt.Fprintf(w, "  %s\n", ui.Dim("Run ID: "+r.RunID))
}

// confirm asks a [y/N] question on stdout and reads the answer from in.
func confirm(w io.Writer, in io.Reader, question string) bool {
	fmt.Fprintf(w, "\n⚠️  %s [y/N]: ", question)
	var answer string
	fmt.Fscanln(in, &answer)
	answer = strings.TrimSpace(answer)
	return answer == "y" || answer == "Y"
}
