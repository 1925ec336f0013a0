package output

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/law-makers/tablecrawl/pkg/models"
)

// utf8BOM lets spreadsheet applications detect the encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// SaveCSV writes the table as UTF-8 CSV with a byte order mark and a header row.
func SaveCSV(table *models.Table, filepath string) error {
	file, err := os.Create(filepath)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := WriteCSV(file, table); err != nil {
		return err
	}
	return file.Close()
}

// WriteCSV writes the BOM, header and rows to w.
func WriteCSV(w io.Writer, table *models.Table) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(table.Columns); err != nil {
		return err
	}
	for _, row := range table.Rows {
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
