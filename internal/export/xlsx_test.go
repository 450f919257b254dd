package export

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/dutchveg/dsmap/internal/projects"
	"github.com/dutchveg/dsmap/internal/table"
)

func TestWriteTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")

	veg := table.New("vegtype", []string{"elmid", "vegtype_code", "geometry"})
	require.NoError(t, veg.Append([]any{int64(101), "25a1", nil}))
	require.NoError(t, veg.Append([]any{int64(102), "09b", nil}))

	require.NoError(t, WriteTables(path, []*table.Table{veg}))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	sheet, ok := f.Sheet["vegtype"]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 3)

	header := sheet.Rows[0]
	require.Len(t, header.Cells, 2, "geometry column is not exported")
	assert.Equal(t, "elmid", header.Cells[0].String())
	assert.Equal(t, "vegtype_code", header.Cells[1].String())
	assert.Equal(t, "25a1", sheet.Rows[1].Cells[1].String())
}

func TestWriteProjectReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projectfiles.xlsx")
	key := projects.Key{Region: "Dr", Project: "Dr 0007_Hijken_1989"}
	mapper := projects.NewPathMapper("/archive")

	rows := []projects.ProjectFiles{{
		Record: projects.Record{Key: key, Year: "1989", Dir: "/archive/Dr/Dr 0007_Hijken_1989"},
		Database: projects.Selection{
			Key: key, Path: "/archive/Dr/Dr 0007_Hijken_1989/data.mdb", Tier: "trivial",
		},
	}}
	results := map[projects.Role]*projects.Result{
		projects.RolePolygon: {Ambiguous: []projects.Candidate{
			{Key: key, Name: "a.shp", Path: "/archive/Dr/Dr 0007_Hijken_1989/a.shp"},
			{Key: key, Name: "b.shp", Path: "/archive/Dr/Dr 0007_Hijken_1989/b.shp"},
		}},
	}

	require.NoError(t, WriteProjectReport(path, rows, results, mapper))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)

	files, ok := f.Sheet["projectfiles"]
	require.True(t, ok)
	require.Len(t, files.Rows, 2)
	assert.Equal(t, "Dr", files.Rows[1].Cells[0].String())
	assert.Equal(t, filepath.Join("Dr", "Dr 0007_Hijken_1989", "data.mdb"),
		files.Rows[1].Cells[4].String(), "paths are root-relative")

	amb, ok := f.Sheet["ambiguous"]
	require.True(t, ok)
	require.Len(t, amb.Rows, 3)
	assert.Equal(t, "polygon", amb.Rows[1].Cells[0].String())
}

func TestSheetNameDedup(t *testing.T) {
	used := map[string]bool{}
	assert.Equal(t, "vegtype", sheetName("vegtype", used))
	assert.Equal(t, "vegtype_2", sheetName("vegtype", used))
	long := "a_very_long_sheet_name_over_the_31_char_limit"
	assert.Len(t, sheetName(long, used), 31)
}
