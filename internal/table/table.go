// Package table holds the in-memory tabular result produced by both the
// query runner and the CSV loader.
package table

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Row maps column name to value.
type Row map[string]any

// Table is an ordered set of rows sharing a fixed column set.
type Table struct {
	Columns []string
	Rows    []Row
}

// New returns an empty table with the given columns.
func New(columns []string) *Table {
	return &Table{Columns: columns, Rows: make([]Row, 0)}
}

// Append adds a row built from values in column order.
// It panics if len(values) does not match the column count.
func (t *Table) Append(values ...any) {
	if len(values) != len(t.Columns) {
		panic(fmt.Sprintf("table: %d values for %d columns", len(values), len(t.Columns)))
	}
	row := make(Row, len(t.Columns))
	for i, col := range t.Columns {
		row[col] = values[i]
	}
	t.Rows = append(t.Rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool { return len(t.Rows) == 0 }

// Column returns every value of the named column, in row order.
func (t *Table) Column(name string) ([]any, bool) {
	found := false
	for _, c := range t.Columns {
		if c == name {
			found = true
			break
		}
	}
	if !found {
		return nil, false
	}
	vals := make([]any, len(t.Rows))
	for i, r := range t.Rows {
		vals[i] = r[name]
	}
	return vals, true
}

// Records renders the table as string records, header first. Nil values
// become empty strings.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, len(t.Rows)+1)
	out = append(out, append([]string(nil), t.Columns...))
	for _, r := range t.Rows {
		rec := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			rec[i] = FormatValue(r[c])
		}
		out = append(out, rec)
	}
	return out
}

// MarshalJSON encodes the table as an array of objects whose keys keep the
// column order.
func (t *Table) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, r := range t.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for j, c := range t.Columns {
			if j > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(c)
			if err != nil {
				return nil, err
			}
			v, err := json.Marshal(r[c])
			if err != nil {
				return nil, fmt.Errorf("column %q: %w", c, err)
			}
			buf.Write(k)
			buf.WriteByte(':')
			buf.Write(v)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// FormatValue renders a single cell for text output.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}
