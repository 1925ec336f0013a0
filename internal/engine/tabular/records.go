// Package tabular turns captured documents into models.Table values.
package tabular

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/law-makers/tablecrawl/pkg/models"
)

// ErrSchemaMismatch is returned when a document does not have the expected shape.
var ErrSchemaMismatch = errors.New("schema mismatch")

// object is a decoded JSON object that remembers key order.
type object struct {
	keys []string
	vals map[string]any
}

func (o *object) set(k string, v any) {
	if _, ok := o.vals[k]; !ok {
		o.keys = append(o.keys, k)
	}
	o.vals[k] = v
}

// FromRecords extracts the array found at the dotted path inside raw and
// flattens each element into one row. Nested objects become "parent.child"
// columns, ordered by first appearance across records.
func FromRecords(raw []byte, path string) (*models.Table, error) {
	doc, err := decodeOrdered(raw)
	if err != nil {
		return models.NewTable(), fmt.Errorf("decode captured JSON: %w", err)
	}

	node := doc
	walked := make([]string, 0, 4)
	for _, key := range strings.Split(path, ".") {
		walked = append(walked, key)
		obj, ok := node.(*object)
		if !ok {
			parent := strings.Join(walked[:len(walked)-1], ".")
			if parent == "" {
				parent = "(root)"
			}
			return models.NewTable(), fmt.Errorf("%w: %s is not an object", ErrSchemaMismatch, parent)
		}
		next, ok := obj.vals[key]
		if !ok {
			return models.NewTable(), fmt.Errorf("%w: key %q not found", ErrSchemaMismatch, strings.Join(walked, "."))
		}
		node = next
	}

	records, ok := node.([]any)
	if !ok {
		return models.NewTable(), fmt.Errorf("%w: %s is not an array", ErrSchemaMismatch, path)
	}

	table := models.NewTable()
	index := make(map[string]int)
	flat := make([]map[string]string, 0, len(records))

	for i, rec := range records {
		obj, ok := rec.(*object)
		if !ok {
			return models.NewTable(), fmt.Errorf("%w: record %d is not an object", ErrSchemaMismatch, i)
		}
		row := make(map[string]string, len(obj.keys))
		flatten("", obj, row, func(col string) {
			if _, seen := index[col]; !seen {
				index[col] = len(table.Columns)
				table.Columns = append(table.Columns, col)
			}
		})
		flat = append(flat, row)
	}

	for _, row := range flat {
		cells := make([]string, len(table.Columns))
		for col, v := range row {
			cells[index[col]] = v
		}
		table.Rows = append(table.Rows, cells)
	}
	return table, nil
}

func flatten(prefix string, obj *object, row map[string]string, seen func(string)) {
	for _, k := range obj.keys {
		col := k
		if prefix != "" {
			col = prefix + "." + k
		}
		if child, ok := obj.vals[k].(*object); ok {
			flatten(col, child, row, seen)
			continue
		}
		seen(col)
		row[col] = cell(obj.vals[k])
	}
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "true"
		}
		return "false"
	default:
		var buf bytes.Buffer
		writeCompact(&buf, v)
		return buf.String()
	}
}

// writeCompact re-encodes a decoded value as compact JSON, keeping key order.
func writeCompact(buf *bytes.Buffer, v any) {
	switch x := v.(type) {
	case nil:
		buf.WriteString("null")
	case string:
		b, _ := json.Marshal(x)
		buf.Write(b)
	case json.Number:
		buf.WriteString(x.String())
	case bool:
		if x {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case []any:
		buf.WriteByte('[')
		for i, e := range x {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCompact(buf, e)
		}
		buf.WriteByte(']')
	case *object:
		buf.WriteByte('{')
		for i, k := range x.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, _ := json.Marshal(k)
			buf.Write(b)
			buf.WriteByte(':')
			writeCompact(buf, x.vals[k])
		}
		buf.WriteByte('}')
	}
}

func decodeOrdered(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("trailing data after JSON document")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := &object{vals: make(map[string]any)}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key %v", kt)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj.set(key, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			arr := make([]any, 0)
			for dec.More() {
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", t)
		}
	default:
		return t, nil
	}
}
