// Package export writes scan results and derived tables to XLSX workbooks,
// the exchange format the field teams work with.
package export

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/dutchveg/dsmap/internal/mapdata"
	"github.com/dutchveg/dsmap/internal/projects"
	"github.com/dutchveg/dsmap/internal/table"
)

// sheetNameLen is the hard sheet-name limit of the XLSX format.
const sheetNameLen = 31

// WriteTables writes one sheet per table: a header row with the column
// names, then the data rows. Geometry columns are skipped; a workbook
// carries attributes only.
func WriteTables(path string, tables []*table.Table) error {
	f := xlsx.NewFile()
	used := make(map[string]bool, len(tables))
	for _, tbl := range tables {
		name := sheetName(tbl.Name, used)
		sheet, err := f.AddSheet(name)
		if err != nil {
			return eris.Wrapf(err, "export: add sheet %s", name)
		}
		writeTable(sheet, tbl)
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

// WriteProjectReport writes the project files table and the ambiguous
// candidate sets of one scan to a workbook. Paths are written relative to
// the archive root.
func WriteProjectReport(path string, rows []projects.ProjectFiles, results map[projects.Role]*projects.Result, mapper projects.PathMapper) error {
	f := xlsx.NewFile()

	files, err := f.AddSheet("projectfiles")
	if err != nil {
		return eris.Wrap(err, "export: add sheet projectfiles")
	}
	writeHeader(files,
		"region", "project", "year", "directory",
		"database", "database_tier",
		"polygon", "polygon_tier",
		"line", "line_tier",
		"point", "point_tier",
		"guessed",
	)
	for _, r := range rows {
		row := files.AddRow()
		row.AddCell().SetValue(r.Record.Key.Region)
		row.AddCell().SetValue(r.Record.Key.Project)
		row.AddCell().SetValue(r.Record.Year)
		row.AddCell().SetValue(mapper.Rel(r.Record.Dir))
		for _, sel := range []projects.Selection{r.Database, r.Polygon, r.Line, r.Point} {
			row.AddCell().SetValue(mapper.Rel(sel.Path))
			row.AddCell().SetValue(sel.Tier)
		}
		row.AddCell().SetValue(anyGuessed(r))
	}

	amb, err := f.AddSheet("ambiguous")
	if err != nil {
		return eris.Wrap(err, "export: add sheet ambiguous")
	}
	writeHeader(amb, "role", "region", "project", "path")
	for _, role := range append([]projects.Role{projects.RoleDatabase}, projects.GeometryRoles...) {
		res := results[role]
		if res == nil {
			continue
		}
		for _, c := range res.Ambiguous {
			row := amb.AddRow()
			row.AddCell().SetValue(role.String())
			row.AddCell().SetValue(c.Key.Region)
			row.AddCell().SetValue(c.Key.Project)
			row.AddCell().SetValue(mapper.Rel(c.Path))
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func anyGuessed(r projects.ProjectFiles) bool {
	return r.Database.Guessed || r.Polygon.Guessed || r.Line.Guessed || r.Point.Guessed
}

func writeTable(sheet *xlsx.Sheet, tbl *table.Table) {
	cols := make([]int, 0, len(tbl.Columns))
	header := sheet.AddRow()
	for j, c := range tbl.Columns {
		if c == mapdata.GeometryColumn {
			continue
		}
		header.AddCell().SetValue(c)
		cols = append(cols, j)
	}
	for _, r := range tbl.Rows {
		row := sheet.AddRow()
		for _, j := range cols {
			cell := row.AddCell()
			if r[j] == nil {
				cell.SetValue("")
				continue
			}
			cell.SetValue(r[j])
		}
	}
}

func writeHeader(sheet *xlsx.Sheet, names ...string) {
	row := sheet.AddRow()
	for _, n := range names {
		row.AddCell().SetValue(n)
	}
}

func sheetName(name string, used map[string]bool) string {
	if name == "" {
		name = "sheet"
	}
	if len(name) > sheetNameLen {
		name = name[:sheetNameLen]
	}
	base := name
	for i := 2; used[name]; i++ {
		suffix := "_" + strconv.Itoa(i)
		trimmed := base
		if len(trimmed)+len(suffix) > sheetNameLen {
			trimmed = trimmed[:sheetNameLen-len(suffix)]
		}
		name = trimmed + suffix
	}
	used[name] = true
	return name
}
