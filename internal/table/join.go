package table

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// Kind selects the join semantics.
type Kind int

const (
	Inner Kind = iota
	Left
	Right
	Outer
)

// Cardinality is the expected key multiplicity of a join. Violations are
// surfaced as warnings, not errors: malformed legacy exports are expected.
type Cardinality int

const (
	ManyToMany Cardinality = iota
	OneToOne
	OneToMany
	ManyToOne
)

// Warning reports a data-quality condition found while joining.
type Warning struct {
	Left  string
	Right string
	Msg   string
}

func (w Warning) String() string {
	return fmt.Sprintf("join %s with %s: %s", w.Left, w.Right, w.Msg)
}

// Join merges two tables on a shared key column. The right key column is
// dropped from the output; other duplicate column names from the right table
// get a "_<right name>" suffix. Cardinality violations are returned as
// warnings alongside the merged table.
func Join(left, right *Table, leftKey, rightKey string, kind Kind, card Cardinality) (*Table, []Warning, error) {
	li, ok := left.ColumnIndex(leftKey)
	if !ok {
		return nil, nil, eris.Errorf("table %s: missing join column %q", left.Name, leftKey)
	}
	ri, ok := right.ColumnIndex(rightKey)
	if !ok {
		return nil, nil, eris.Errorf("table %s: missing join column %q", right.Name, rightKey)
	}

	warnings := checkCardinality(left, right, li, ri, card)

	// Output columns: all of left, then right minus its key column,
	// suffixed on collision.
	columns := append([]string(nil), left.Columns...)
	rightCols := make([]int, 0, len(right.Columns)-1)
	for j, c := range right.Columns {
		if j == ri {
			continue
		}
		name := c
		if _, dup := left.ColumnIndex(c); dup {
			name = c + "_" + right.Name
		}
		columns = append(columns, name)
		rightCols = append(rightCols, j)
	}
	out := New(left.Name, columns)

	byKey := make(map[string][]int)
	for i, row := range right.Rows {
		k := KeyString(row[ri])
		byKey[k] = append(byKey[k], i)
	}

	matched := make(map[int]bool, len(right.Rows))
	for _, lrow := range left.Rows {
		k := KeyString(lrow[li])
		hits := byKey[k]
		if len(hits) == 0 {
			if kind == Left || kind == Outer {
				out.Rows = append(out.Rows, padRow(lrow, nil, rightCols))
			}
			continue
		}
		for _, h := range hits {
			matched[h] = true
			out.Rows = append(out.Rows, padRow(lrow, right.Rows[h], rightCols))
		}
	}

	if kind == Right || kind == Outer {
		for i, rrow := range right.Rows {
			if matched[i] {
				continue
			}
			lrow := make([]any, len(left.Columns))
			lrow[li] = rrow[ri]
			out.Rows = append(out.Rows, padRow(lrow, rrow, rightCols))
		}
	}

	return out, warnings, nil
}

func padRow(lrow, rrow []any, rightCols []int) []any {
	row := append([]any(nil), lrow...)
	for _, j := range rightCols {
		if rrow == nil {
			row = append(row, nil)
		} else {
			row = append(row, rrow[j])
		}
	}
	return row
}

func checkCardinality(left, right *Table, li, ri int, card Cardinality) []Warning {
	var warnings []Warning
	if card == OneToOne || card == OneToMany {
		if key, n := firstDuplicate(left.Rows, li); n > 1 {
			warnings = append(warnings, Warning{
				Left:  left.Name,
				Right: right.Name,
				Msg:   fmt.Sprintf("left key %q occurs %d times, expected unique", key, n),
			})
		}
	}
	if card == OneToOne || card == ManyToOne {
		if key, n := firstDuplicate(right.Rows, ri); n > 1 {
			warnings = append(warnings, Warning{
				Left:  left.Name,
				Right: right.Name,
				Msg:   fmt.Sprintf("right key %q occurs %d times, expected unique", key, n),
			})
		}
	}
	return warnings
}

func firstDuplicate(rows [][]any, idx int) (string, int) {
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[KeyString(row[idx])]++
	}
	for _, row := range rows {
		k := KeyString(row[idx])
		if counts[k] > 1 {
			return k, counts[k]
		}
	}
	return "", 0
}
