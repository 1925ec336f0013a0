package output

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/law-makers/tablecrawl/pkg/models"
)

// SaveJSON writes the table as an indented array of objects keyed by column.
func SaveJSON(table *models.Table, filepath string) error {
	content, err := MarshalRecords(table)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath, content, 0644)
}

// MarshalRecords encodes rows as objects whose keys follow column order.
// Maps would sort the keys, so objects are written field by field.
func MarshalRecords(table *models.Table) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("[")
	for i, row := range table.Rows {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n  {")
		for j, col := range table.Columns {
			if j > 0 {
				buf.WriteString(",")
			}
			key, err := json.Marshal(col)
			if err != nil {
				return nil, err
			}
			var cell string
			if j < len(row) {
				cell = row[j]
			}
			val, err := json.Marshal(cell)
			if err != nil {
				return nil, err
			}
			buf.WriteString("\n    ")
			buf.Write(key)
			buf.WriteString(": ")
			buf.Write(val)
		}
		buf.WriteString("\n  }")
	}
	if len(table.Rows) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("]\n")
	return buf.Bytes(), nil
}
