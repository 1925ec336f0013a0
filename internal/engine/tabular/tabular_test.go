package tabular

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/law-makers/tablecrawl/pkg/models"
)

const populationTable = `<html><body>
<table class="wikitable sortable">
  <tr><th>Rank</th><th>Country</th><th>Population</th></tr>
  <tr><td>1</td><td>China</td><td>1.4B</td></tr>
  <tr><td>2</td><td>India</td><td>1.4B</td></tr>
</table>
</body></html>`

func TestFromHTMLTable_Population(t *testing.T) {
	got, err := FromHTMLTable(populationTable)
	if err != nil {
		t.Fatalf("FromHTMLTable failed: %v", err)
	}

	want := &models.Table{
		Columns: []string{"Rank", "Country", "Population"},
		Rows: [][]string{
			{"1", "China", "1.4B"},
			{"2", "India", "1.4B"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}
}

func TestFromHTMLTable_TruncatesToFirstRow(t *testing.T) {
	markup := `<table>
  <tr><th>A</th><th>B</th><th>C</th><th>D</th></tr>
  <tr><td>1</td><td>2</td></tr>
  <tr><td>3</td><td>4</td><td>5</td><td>6</td></tr>
  <tr><td>7</td></tr>
</table>`

	got, err := FromHTMLTable(markup)
	if err != nil {
		t.Fatalf("FromHTMLTable failed: %v", err)
	}

	want := &models.Table{
		Columns: []string{"A", "B"},
		Rows:    [][]string{{"1", "2"}, {"3", "4"}, {"7", ""}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}
}

func TestFromHTMLTable_HiddenAndNested(t *testing.T) {
	markup := `<table class="wikitable">
  <thead><tr><th>Name</th><th style="display: none">Sort</th><th>Notes</th></tr></thead>
  <tbody>
    <tr><td><span style="display:none">0001</span>Alpha <b>One</b></td><td style="display:none">x</td><td>a<br>b</td></tr>
    <tr style="display:none"><td>hidden</td><td>row</td></tr>
    <tr><td>Beta</td><td><table><tr><th>inner </th></tr><tr><td>n</td></tr></table></td></tr>
  </tbody>
</table>`

	got, err := FromHTMLTable(markup)
	if err != nil {
		t.Fatalf("FromHTMLTable failed: %v", err)
	}

	want := &models.Table{
		Columns: []string{"Name", "Notes"},
		Rows:    [][]string{{"Alpha One", "a b"}, {"Beta", "inner n"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}
}

func TestFromHTMLTable_HiddenHeaderRow(t *testing.T) {
	markup := `<table class="wikitable">
  <tr style="display:none"><th>sort</th><th>sort</th></tr>
  <tr><th>Rank</th><th>Country</th></tr>
  <tr><td>1</td><td>China</td></tr>
</table>`

	got, err := FromHTMLTable(markup)
	if err != nil {
		t.Fatalf("FromHTMLTable failed: %v", err)
	}

	want := &models.Table{
		Columns: []string{"Rank", "Country"},
		Rows:    [][]string{{"1", "China"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}
}

func TestFromHTMLTable_NoHeader(t *testing.T) {
	markup := `<table><tr><td>skip</td></tr><tr><td>x</td><td>y</td></tr></table>`
	got, err := FromHTMLTable(markup)
	if err != nil {
		t.Fatalf("FromHTMLTable failed: %v", err)
	}
	if diff := cmp.Diff([]string{"Column 1", "Column 2"}, got.Columns); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
}

func TestFromHTMLTable_Empty(t *testing.T) {
	got, err := FromHTMLTable(`<table><tr><th>Only</th></tr></table>`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || !got.Empty() {
		t.Errorf("expected empty table, got %+v", got)
	}

	got, err = FromHTMLTable(`<div>no table</div>`)
	if !errors.Is(err, ErrNoTable) {
		t.Errorf("expected ErrNoTable, got %v", err)
	}
	if got == nil {
		t.Error("expected non-nil table alongside error")
	}
}

func TestFromHTMLTable_Deterministic(t *testing.T) {
	a, _ := FromHTMLTable(populationTable)
	b, _ := FromHTMLTable(populationTable)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("repeated parse differs:\n%s", diff)
	}
}

func TestFromRecords(t *testing.T) {
	raw := []byte(`{"data":{"records":[
		{"id":1,"name":"Alice","meta":{"age":30,"city":"Paris"},"active":true},
		{"id":2,"name":"Bob","meta":{"city":null},"tags":["a","b"],"score":12.50},
		{"name":"Carol","extra":{"deep":{"x":"y"}},"active":false}
	]}}`)

	got, err := FromRecords(raw, "data.records")
	if err != nil {
		t.Fatalf("FromRecords failed: %v", err)
	}

	want := &models.Table{
		Columns: []string{"id", "name", "meta.age", "meta.city", "active", "tags", "score", "extra.deep.x"},
		Rows: [][]string{
			{"1", "Alice", "30", "Paris", "true", "", "", ""},
			{"2", "Bob", "", "", "", `["a","b"]`, "12.50", ""},
			{"", "Carol", "", "", "false", "", "", "y"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}
}

func TestFromRecords_RowCountMatchesRecords(t *testing.T) {
	raw := []byte(`{"data":{"records":[{"a":1},{"a":2},{"a":3},{"a":4}]}}`)
	got, err := FromRecords(raw, "data.records")
	if err != nil {
		t.Fatalf("FromRecords failed: %v", err)
	}
	if got.Len() != 4 {
		t.Errorf("expected 4 rows, got %d", got.Len())
	}
}

func TestFromRecords_SchemaMismatch(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing data", `{"ok":true}`},
		{"missing records", `{"data":{"rows":[]}}`},
		{"data not object", `{"data":[1,2]}`},
		{"records not array", `{"data":{"records":{"a":1}}}`},
		{"record not object", `{"data":{"records":[{"a":1},2]}}`},
		{"top level array", `[{"a":1}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromRecords([]byte(tt.raw), "data.records")
			if !errors.Is(err, ErrSchemaMismatch) {
				t.Fatalf("expected ErrSchemaMismatch, got %v", err)
			}
			if got == nil || !got.Empty() {
				t.Errorf("expected empty table, got %+v", got)
			}
		})
	}
}

func TestFromRecords_MismatchNamesPath(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`[{"a":1}]`, "(root) is not an object"},
		{`{"data":[1,2]}`, "data is not an object"},
		{`{"data":{"rows":[]}}`, `key "data.records" not found`},
	}

	for _, tt := range tests {
		_, err := FromRecords([]byte(tt.raw), "data.records")
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("FromRecords(%s) error = %v, want it to mention %q", tt.raw, err, tt.want)
		}
	}
}

func TestFromRecords_InvalidJSON(t *testing.T) {
	got, err := FromRecords([]byte(`{"data":`), "data.records")
	if err == nil || errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if got == nil {
		t.Error("expected non-nil table")
	}
}

func TestFromRecords_CustomPath(t *testing.T) {
	raw := []byte(`{"result":{"sheet":{"rows":[{"k":"v"}]}}}`)
	got, err := FromRecords(raw, "result.sheet.rows")
	if err != nil {
		t.Fatalf("FromRecords failed: %v", err)
	}
	if diff := cmp.Diff([][]string{{"v"}}, got.Rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}
