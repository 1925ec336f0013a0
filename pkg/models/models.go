package models

import "time"

// Table is the normalized tabular result of an extraction run.
// Every row holds exactly len(Columns) cells.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{Columns: []string{}, Rows: [][]string{}}
}

// Empty reports whether the table carries no data rows.
func (t *Table) Empty() bool {
	return t == nil || len(t.Rows) == 0
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Records returns the rows as column-keyed maps.
func (t *Table) Records() []map[string]string {
	if t == nil {
		return nil
	}
	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]string, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out
}

// Source identifies which extractor produced a table
type Source string

const (
	SourceWiki  Source = "wiki"
	SourceSheet Source = "sheet"
)

// RequestOptions contains options for one extraction run
type RequestOptions struct {
	URL     string
	Source  Source
	Timeout time.Duration
}

// Result is a finished extraction run.
type Result struct {
	RunID      string        `json:"run_id"`
	Source     Source        `json:"source"`
	URL        string        `json:"url"`
	Table      *Table        `json:"table"`
	Status     string        `json:"status"`
	Error      string        `json:"error,omitempty"`
	FetchedAt  time.Time     `json:"fetched_at"`
	Duration   time.Duration `json:"duration_ns"`
	OutputPath string        `json:"output_path,omitempty"`
}
