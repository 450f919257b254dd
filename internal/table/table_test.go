package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendChecksColumnCount(t *testing.T) {
	tbl := New("t", []string{"a", "b"})
	require.NoError(t, tbl.Append([]any{1, 2}))
	assert.Error(t, tbl.Append([]any{1}))
	assert.Equal(t, 1, tbl.Len())
}

func TestLowerColumns(t *testing.T) {
	tbl := New("t", []string{"ElmID", "Datum"})
	require.NoError(t, tbl.LowerColumns())
	assert.Equal(t, []string{"elmid", "datum"}, tbl.Columns)
}

func TestLowerColumnsCollision(t *testing.T) {
	tbl := New("t", []string{"ElmID", "ELMID"})
	err := tbl.LowerColumns()
	require.Error(t, err, "colliding names are reported, never merged")
	assert.Contains(t, err.Error(), "ElmID")
	assert.Contains(t, err.Error(), "ELMID")
}

func TestSelectAndDrop(t *testing.T) {
	tbl := New("t", []string{"a", "b", "c"})
	require.NoError(t, tbl.Append([]any{1, 2, 3}))

	sel, err := tbl.Select("c", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, sel.Columns)
	assert.Equal(t, []any{3, 1}, sel.Rows[0])

	_, err = tbl.Select("nope")
	assert.Error(t, err)

	dropped := tbl.Drop("b")
	assert.Equal(t, []string{"a", "c"}, dropped.Columns)
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "5", KeyString(int64(5)))
	assert.Equal(t, "5", KeyString(5.0), "whole floats join with integer keys")
	assert.Equal(t, "5.5", KeyString(5.5))
	assert.Equal(t, "x", KeyString("x"))
	assert.Equal(t, "", KeyString(nil))
}

func joinFixtures() (*Table, *Table) {
	left := New("element", []string{"locatie_id", "elmid"})
	_ = left.Append([]any{"1", int64(101)})
	_ = left.Append([]any{"2", int64(102)})
	_ = left.Append([]any{"3", int64(103)})

	right := New("vegloc", []string{"locatie", "code"})
	_ = right.Append([]any{"1", "25a1"})
	_ = right.Append([]any{"1", "25a2"})
	_ = right.Append([]any{"2", "09b"})
	_ = right.Append([]any{"9", "xx"})
	return left, right
}

func TestJoinInner(t *testing.T) {
	left, right := joinFixtures()
	out, warns, err := Join(left, right, "locatie_id", "locatie", Inner, OneToMany)
	require.NoError(t, err)
	assert.Empty(t, warns)
	assert.Equal(t, []string{"locatie_id", "elmid", "code"}, out.Columns)
	assert.Equal(t, 3, out.Len())
}

func TestJoinLeft(t *testing.T) {
	left, right := joinFixtures()
	out, _, err := Join(left, right, "locatie_id", "locatie", Left, ManyToMany)
	require.NoError(t, err)
	require.Equal(t, 4, out.Len())
	// unmatched left row is padded with nil
	assert.Equal(t, []any{"3", int64(103), nil}, out.Rows[3])
}

func TestJoinRight(t *testing.T) {
	left, right := joinFixtures()
	out, _, err := Join(left, right, "locatie_id", "locatie", Right, ManyToMany)
	require.NoError(t, err)
	require.Equal(t, 4, out.Len())
	// the right-only key survives with the left columns padded
	last := out.Rows[3]
	assert.Equal(t, "9", last[0])
	assert.Nil(t, last[1])
	assert.Equal(t, "xx", last[2])
}

func TestJoinOuter(t *testing.T) {
	left, right := joinFixtures()
	out, _, err := Join(left, right, "locatie_id", "locatie", Outer, ManyToMany)
	require.NoError(t, err)
	assert.Equal(t, 5, out.Len())
}

func TestJoinCardinalityWarning(t *testing.T) {
	left, right := joinFixtures()
	_, warns, err := Join(left, right, "locatie_id", "locatie", Inner, ManyToOne)
	require.NoError(t, err)
	require.NotEmpty(t, warns, "duplicate right key violates many-to-one")
	assert.Contains(t, warns[0].Msg, "expected unique")
}

func TestJoinSuffixesDuplicateColumns(t *testing.T) {
	left := New("a", []string{"id", "datum"})
	_ = left.Append([]any{"1", "x"})
	right := New("b", []string{"id", "datum"})
	_ = right.Append([]any{"1", "y"})

	out, _, err := Join(left, right, "id", "id", Inner, OneToOne)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "datum", "datum_b"}, out.Columns)
	assert.Equal(t, []any{"1", "x", "y"}, out.Rows[0])
}

func TestJoinMissingKeyColumn(t *testing.T) {
	left, right := joinFixtures()
	_, _, err := Join(left, right, "nope", "locatie", Inner, ManyToMany)
	assert.Error(t, err)
}
