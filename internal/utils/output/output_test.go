package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/law-makers/tablecrawl/pkg/models"
)

func populationTable() *models.Table {
	return &models.Table{
		Columns: []string{"Rank", "Country", "Population"},
		Rows: [][]string{
			{"1", "China", "1,411,750,000"},
			{"2", "India", "1,392,329,000"},
		},
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]Format{
		"docs/population_data.csv": FormatCSV,
		"out.JSON":                 FormatJSON,
		"table.md":                 FormatMarkdown,
		"page.htm":                 FormatHTML,
		"noext":                    FormatCSV,
		"weird.xlsx":               FormatCSV,
	}
	for path, want := range tests {
		if got := FormatFromPath(path); got != want {
			t.Errorf("FormatFromPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestSave_CSVWithBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs", "population_data.csv")
	if err := Save(populationTable(), path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(data, utf8BOM) {
		t.Fatalf("missing UTF-8 BOM: % x", data[:3])
	}

	records, err := csv.NewReader(bytes.NewReader(data[len(utf8BOM):])).ReadAll()
	if err != nil {
		t.Fatalf("parse CSV: %v", err)
	}
	want := [][]string{
		{"Rank", "Country", "Population"},
		{"1", "China", "1,411,750,000"},
		{"2", "India", "1,392,329,000"},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Errorf("CSV mismatch (-want +got):\n%s", diff)
	}
}

func TestSave_Deterministic(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	b := filepath.Join(dir, "b.csv")
	if err := Save(populationTable(), a); err != nil {
		t.Fatal(err)
	}
	if err := Save(populationTable(), b); err != nil {
		t.Fatal(err)
	}
	da, _ := os.ReadFile(a)
	db, _ := os.ReadFile(b)
	if !bytes.Equal(da, db) {
		t.Error("identical tables produced different files")
	}
}

func TestSave_EmptyTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	err := Save(models.NewTable(), path)
	if !errors.Is(err, ErrEmptyTable) {
		t.Fatalf("expected ErrEmptyTable, got %v", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("empty table should not create a file")
	}
}

func TestSave_JSONKeepsColumnOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	if err := Save(populationTable(), path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var got []map[string]string
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, data)
	}
	if len(got) != 2 || got[1]["Country"] != "India" {
		t.Errorf("unexpected records: %v", got)
	}

	first := string(data)
	if !(strings.Index(first, `"Rank"`) < strings.Index(first, `"Country"`) &&
		strings.Index(first, `"Country"`) < strings.Index(first, `"Population"`)) {
		t.Errorf("keys out of column order:\n%s", data)
	}
}

func TestRenderTable_EscapesCells(t *testing.T) {
	table := &models.Table{
		Columns: []string{"Name"},
		Rows:    [][]string{{`<script>alert(1)</script><b>x</b>`}},
	}
	out, err := RenderTable(table)
	if err != nil {
		t.Fatalf("RenderTable failed: %v", err)
	}
	if strings.Contains(out, "<script>") || strings.Contains(out, "<b>") {
		t.Errorf("cell markup leaked into output: %s", out)
	}
	if !strings.Contains(out, `<th scope="col">Name</th>`) {
		t.Errorf("header missing: %s", out)
	}
}

func TestSave_Markdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.md")
	if err := Save(populationTable(), path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{"Rank", "Country", "India", "|", "---"} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q:\n%s", want, out)
		}
	}
}

func TestSave_HTMLDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.html")
	if err := Save(populationTable(), path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if !strings.HasPrefix(out, "<!DOCTYPE html>") || !strings.Contains(out, "<td>China</td>") {
		t.Errorf("unexpected HTML:\n%s", out)
	}
}
