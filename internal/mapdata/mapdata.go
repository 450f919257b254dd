package mapdata

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/dutchveg/dsmap/internal/maptables"
	"github.com/dutchveg/dsmap/internal/shape"
	"github.com/dutchveg/dsmap/internal/table"
)

// shapefileColumns renames view columns to their export names, within the
// ten character limit of the DBF format, and fixes the export order.
var shapefileColumns = map[string][][2]string{
	"vegtype": {
		{"elmid", "elmid"},
		{"datum", "datum"},
		{"locatietype", "loctype"},
		{"vegtype_code", "veg_code"},
		{"vegtype_naam", "veg_naam"},
		{"vegtype_vorm", "veg_vorm"},
		{"vegtype_bedekkingcode", "veg_bedcod"},
		{"vegtype_bedekkingnum", "veg_bednum"},
		{"sbbcat_code", "sbb_code"},
		{"sbbcat_wetnaam", "sbb_wetnm"},
		{"sbbcat_nednaam", "sbb_nednm"},
		{"sbbcat_kortenaam", "sbb_kortnm"},
		{"sbbcat_vervangbaarheid", "sbb_vevang"},
		{"oppha", "oppha"},
		{GeometryColumn, GeometryColumn},
	},
	"mapspecies": {
		{"elmid", "elmid"},
		{"locatietype", "loctype"},
		{"datum", "datum"},
		{"sbbtype", "sbbtype"},
		{"krtsrt_srtcode", "srtcode"},
		{"krtsrt_bedcode", "bedcode"},
		{"krtsrt_aantalsklasse", "aantkl"},
		{"krtsrt_bednum", "bednum"},
		{"cbs_srtwet", "srtwet"},
		{"cbs_srtned", "srtned"},
		{"oppha", "oppha"},
		{GeometryColumn, GeometryColumn},
	},
	"pointspecies": {
		{"pntid", "pntid"},
		{"pntloctype", "loctype"},
		{"srtgroep", "srtgroep"},
		{"srtnr", "srtnr"},
		{"srtnednaam", "nednaam"},
		{"srtwetnaam", "wetnaam"},
		{"srtsbbkl", "sbbkl"},
		{"srttansley", "tansley"},
		{"srtdatum", "datum"},
		{"srtwrnmr", "wrnmr"},
		{"srtopm", "opm"},
		{"xcr", "xcr"},
		{"ycr", "ycr"},
		{GeometryColumn, GeometryColumn},
	},
}

// MapData combines the attribute tables of one project with its polygon
// and line geometries.
type MapData struct {
	Tables   *maptables.Set
	Polygons *Elements
	Lines    *Elements
}

// New assembles a MapData. Nil element sets are treated as empty.
func New(tables *maptables.Set, polygons, lines *Elements) *MapData {
	if polygons == nil {
		polygons = Empty()
	}
	if lines == nil {
		lines = Empty()
	}
	return &MapData{Tables: tables, Polygons: polygons, Lines: lines}
}

func (m *MapData) elements(element string) (*Elements, error) {
	switch element {
	case maptables.LocTypePolygon:
		return m.Polygons, nil
	case maptables.LocTypeLine:
		return m.Lines, nil
	}
	return nil, eris.Errorf("mapdata: invalid element type %q", element)
}

// Vegtype returns the mapped elements of one type joined with their
// vegetation types. Elements without a matching attribute row are dropped.
func (m *MapData) Vegtype(element string) (*table.Table, error) {
	elems, err := m.elements(element)
	if err != nil {
		return nil, err
	}

	veg, err := m.Tables.Vegtype()
	if err != nil {
		return nil, err
	}
	if veg.Len() == 0 {
		zap.L().Warn("mapdata: empty vegetation data")
		return table.New("vegtype", veg.Columns), nil
	}

	joined, warns, err := table.Join(elems.Table(), veg, "elmid", "elmid",
		table.Left, table.OneToMany)
	if err != nil {
		return nil, eris.Wrap(err, "mapdata: vegtype")
	}
	m.Tables.Warnings = append(m.Tables.Warnings, warns...)

	out := dropUnmatched(joined, "locatietype")
	out.Name = "vegtype"
	return out, nil
}

// MapSpecies returns the mapped elements of one type joined with their
// species observations.
func (m *MapData) MapSpecies(element string) (*table.Table, error) {
	elems, err := m.elements(element)
	if err != nil {
		return nil, err
	}

	spec, err := m.Tables.MapSpecies(element)
	if err != nil {
		return nil, err
	}

	joined, warns, err := table.Join(elems.Table(), spec, "elmid", "elmid",
		table.Outer, table.ManyToMany)
	if err != nil {
		return nil, eris.Wrap(err, "mapdata: mapspecies")
	}
	m.Tables.Warnings = append(m.Tables.Warnings, warns...)

	out := dropUnmatched(joined, "locatietype")
	out.Name = "mapspecies"
	return out, nil
}

// PointSpecies returns the species point observations with a point
// geometry column built from their coordinate columns.
func (m *MapData) PointSpecies() (*table.Table, error) {
	spc, err := m.Tables.PointSpecies()
	if err != nil {
		return nil, err
	}

	out := table.New("pointspecies", append(append([]string(nil), spc.Columns...), GeometryColumn))
	xi, xok := spc.ColumnIndex("xcr")
	yi, yok := spc.ColumnIndex("ycr")
	if !xok || !yok {
		return nil, eris.New("mapdata: pointspecies table lacks coordinate columns")
	}
	for _, row := range spc.Rows {
		var g geom.T
		if x, xok := asCoord(row[xi]); xok {
			if y, yok := asCoord(row[yi]); yok {
				g = geom.NewPointFlat(geom.XY, []float64{x, y}).SetSRID(shape.DutchGridSRID)
			}
		}
		if err := out.Append(append(append([]any(nil), row...), g)); err != nil {
			return nil, eris.Wrap(err, "mapdata: pointspecies")
		}
	}
	return out, nil
}

// ToShapefile saves one of the derived tables as an ESRI shapefile. The
// extension is forced to .shp; view columns are renamed to their export
// names and reordered, with extras appended and logged.
func (m *MapData) ToShapefile(tablename, element, path string) error {
	spec, ok := shapefileColumns[tablename]
	if !ok {
		return eris.Errorf("mapdata: %q is not a valid tablename", tablename)
	}

	var (
		tbl *table.Table
		err error
	)
	switch tablename {
	case "vegtype":
		tbl, err = m.Vegtype(element)
	case "mapspecies":
		tbl, err = m.MapSpecies(element)
	case "pointspecies":
		tbl, err = m.PointSpecies()
	}
	if err != nil {
		return err
	}
	if tbl.Len() == 0 {
		return eris.Errorf("mapdata: no rows to save for table %s", tablename)
	}

	out := tbl.Copy()
	renames := make(map[string]string, len(spec))
	order := make([]string, 0, len(spec))
	for _, pair := range spec {
		renames[pair[0]] = pair[1]
		order = append(order, pair[1])
	}
	out.Rename(renames)

	columns := make([]string, 0, len(out.Columns))
	for _, c := range order {
		if _, ok := out.ColumnIndex(c); ok {
			columns = append(columns, c)
		} else {
			zap.L().Warn("mapdata: missing export column",
				zap.String("table", tablename), zap.String("column", c))
		}
	}
	for _, c := range out.Columns {
		if !contains(order, c) {
			zap.L().Warn("mapdata: unknown export column",
				zap.String("table", tablename), zap.String("column", c))
			columns = append(columns, c)
		}
	}
	out, err = out.Select(columns...)
	if err != nil {
		return eris.Wrap(err, "mapdata: export")
	}

	gi, ok := out.ColumnIndex(GeometryColumn)
	if !ok {
		return eris.Errorf("mapdata: table %s has no geometry column", tablename)
	}
	geoms := make([]geom.T, 0, out.Len())
	rows := make([][]any, 0, out.Len())
	for _, row := range out.Rows {
		g, _ := row[gi].(geom.T)
		if g == nil {
			continue // rows without geometry cannot be saved
		}
		geoms = append(geoms, g)
		attrs := make([]any, 0, len(row)-1)
		for j, v := range row {
			if j != gi {
				attrs = append(attrs, v)
			}
		}
		rows = append(rows, attrs)
	}
	attrCols := make([]string, 0, len(out.Columns)-1)
	for _, c := range out.Columns {
		if c != GeometryColumn {
			attrCols = append(attrCols, c)
		}
	}

	return shape.Write(forceShpExt(path), attrCols, rows, geoms)
}

func dropUnmatched(t *table.Table, column string) *table.Table {
	idx, ok := t.ColumnIndex(column)
	if !ok {
		return t
	}
	return t.Filter(func(row []any) bool { return row[idx] != nil })
}

func forceShpExt(path string) string {
	ext := filepath.Ext(path)
	if ext == ".shp" {
		return path
	}
	return strings.TrimSuffix(path, ext) + ".shp"
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func asCoord(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case string:
		if x == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
