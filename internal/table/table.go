// Package table provides the in-memory rows-and-columns structure shared by
// the attribute database, shapefile and domain-view layers. Values are held
// as []any rows against an ordered column list; column order is always the
// source order.
package table

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Table is an ordered set of named columns and rows of values.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// New returns an empty table with the given name and column order.
func New(name string, columns []string) *Table {
	return &Table{Name: name, Columns: append([]string(nil), columns...)}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Append adds one row. The row must match the column count exactly.
func (t *Table) Append(row []any) error {
	if len(row) != len(t.Columns) {
		return eris.Errorf("table %s: row has %d values, want %d", t.Name, len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// ColumnIndex returns the position of a column by name.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, c := range t.Columns {
		if c == name {
			return i, true
		}
	}
	return -1, false
}

// Column returns all values of one column.
func (t *Table) Column(name string) ([]any, error) {
	idx, ok := t.ColumnIndex(name)
	if !ok {
		return nil, eris.Errorf("table %s: no column %q", t.Name, name)
	}
	vals := make([]any, len(t.Rows))
	for i, row := range t.Rows {
		vals[i] = row[idx]
	}
	return vals, nil
}

// Value returns the cell at (row, column name).
func (t *Table) Value(row int, name string) (any, error) {
	idx, ok := t.ColumnIndex(name)
	if !ok {
		return nil, eris.Errorf("table %s: no column %q", t.Name, name)
	}
	if row < 0 || row >= len(t.Rows) {
		return nil, eris.Errorf("table %s: row %d out of range", t.Name, row)
	}
	return t.Rows[row][idx], nil
}

// LowerColumns lowercases all column names in place. Two distinct source
// names that collapse to the same lowercase name are reported as an error,
// never silently merged.
func (t *Table) LowerColumns() error {
	seen := make(map[string]string, len(t.Columns))
	for i, c := range t.Columns {
		lc := strings.ToLower(c)
		if prev, dup := seen[lc]; dup {
			return eris.Errorf("table %s: columns %q and %q collide after lowercasing", t.Name, prev, c)
		}
		seen[lc] = c
		t.Columns[i] = lc
	}
	return nil
}

// Rename replaces column names according to the mapping. Names absent from
// the mapping are kept unchanged.
func (t *Table) Rename(mapping map[string]string) {
	for i, c := range t.Columns {
		if repl, ok := mapping[c]; ok {
			t.Columns[i] = repl
		}
	}
}

// Select returns a new table restricted to the named columns, in the order
// given.
func (t *Table) Select(columns ...string) (*Table, error) {
	idx := make([]int, len(columns))
	for i, c := range columns {
		j, ok := t.ColumnIndex(c)
		if !ok {
			return nil, eris.Errorf("table %s: no column %q", t.Name, c)
		}
		idx[i] = j
	}
	out := New(t.Name, columns)
	for _, row := range t.Rows {
		sel := make([]any, len(idx))
		for i, j := range idx {
			sel[i] = row[j]
		}
		out.Rows = append(out.Rows, sel)
	}
	return out, nil
}

// Drop returns a new table without the named columns. Unknown names are
// ignored.
func (t *Table) Drop(columns ...string) *Table {
	skip := make(map[string]bool, len(columns))
	for _, c := range columns {
		skip[c] = true
	}
	keep := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if !skip[c] {
			keep = append(keep, c)
		}
	}
	out, _ := t.Select(keep...)
	return out
}

// Copy returns a deep copy of the table (rows are copied, values shared).
func (t *Table) Copy() *Table {
	out := New(t.Name, t.Columns)
	out.Rows = make([][]any, len(t.Rows))
	for i, row := range t.Rows {
		out.Rows[i] = append([]any(nil), row...)
	}
	return out
}

// Filter returns rows for which keep reports true.
func (t *Table) Filter(keep func(row []any) bool) *Table {
	out := New(t.Name, t.Columns)
	for _, row := range t.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// KeyString renders a cell value as a join key. Numeric types that carry the
// same value render identically so that keys survive driver type drift.
func KeyString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%v", x)
	case float32:
		return KeyString(float64(x))
	default:
		return fmt.Sprintf("%v", x)
	}
}
