// Package output persists extracted tables to files.
package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/law-makers/tablecrawl/pkg/models"
	"github.com/rs/zerolog/log"
)

// ErrEmptyTable is returned when there is nothing to write.
var ErrEmptyTable = errors.New("no data to save")

// Format is a supported output file format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
)

// FormatFromPath picks the format by file extension. Unknown extensions
// are written as CSV.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".md", ".markdown":
		return FormatMarkdown
	case ".html", ".htm":
		return FormatHTML
	default:
		return FormatCSV
	}
}

// Save writes table to path in the format implied by its extension,
// creating parent directories. Empty tables are not written.
func Save(table *models.Table, path string) error {
	if table.Empty() {
		log.Info().Str("path", path).Msg("No data to save")
		return ErrEmptyTable
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	var err error
	switch FormatFromPath(path) {
	case FormatJSON:
		err = SaveJSON(table, path)
	case FormatMarkdown:
		err = SaveMarkdown(table, path)
	case FormatHTML:
		err = SaveHTML(table, path)
	default:
		err = SaveCSV(table, path)
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	log.Info().
		Str("path", path).
		Int("rows", table.Len()).
		Int("columns", len(table.Columns)).
		Msg("Table saved")
	return nil
}
