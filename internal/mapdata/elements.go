// Package mapdata joins the spatial tables of a project with its attribute
// views. Geometries travel as a regular column, so the joined results stay
// plain tables until export.
package mapdata

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/dutchveg/dsmap/internal/shape"
	"github.com/dutchveg/dsmap/internal/table"
)

// missingElmID replaces absent element identifiers so the column can be
// carried as integers.
const missingElmID = 9999

// GeometryColumn is the reserved column name geometries travel under.
const GeometryColumn = "geometry"

// Elements is the spatial table of one geometry file: one row per mapped
// element with a normalized integer elmid and its geometry.
type Elements struct {
	Path  string
	tbl   *table.Table
	areas bool
}

// ElementsFromShapefile reads a geometry file and keeps the element id and
// geometry columns. Polygon files also get an oppha column with the area
// in hectares. The repair log of the read is passed through.
func ElementsFromShapefile(path string, opts shape.Options) (*Elements, []shape.RepairEntry, error) {
	src, repairs, err := shape.Open(path, opts)
	if err != nil {
		return nil, nil, err
	}

	elmIdx, ok := src.ColumnIndex("elmid")
	if !ok {
		return nil, nil, eris.Errorf("mapdata: %s has no elmid column", path)
	}

	_, areas := polygonal(src)
	columns := []string{"elmid"}
	if areas {
		columns = append(columns, "oppha")
	}
	columns = append(columns, GeometryColumn)

	tbl := table.New("elements", columns)
	missing := 0
	for _, f := range src.Features {
		id, ok := asElmID(f.Attrs[elmIdx])
		if !ok {
			id = missingElmID
			missing++
		}
		row := []any{id}
		if areas {
			row = append(row, shape.AreaHa(f.Geom))
		}
		row = append(row, f.Geom)
		if err := tbl.Append(row); err != nil {
			return nil, nil, eris.Wrapf(err, "mapdata: %s", path)
		}
	}
	if missing > 0 {
		zap.L().Warn("mapdata: replaced missing elmid values",
			zap.String("path", path),
			zap.Int("count", missing),
			zap.Int("fill", missingElmID),
		)
	}

	return &Elements{Path: path, tbl: tbl, areas: areas}, repairs, nil
}

// Empty returns an Elements with no rows, for projects lacking a geometry
// file of some role.
func Empty() *Elements {
	return &Elements{tbl: table.New("elements", []string{"elmid", GeometryColumn})}
}

// Len returns the number of elements.
func (e *Elements) Len() int { return e.tbl.Len() }

// Table returns the spatial table.
func (e *Elements) Table() *table.Table { return e.tbl }

func polygonal(t *shape.Table) (geom.T, bool) {
	if len(t.Features) == 0 {
		return nil, false
	}
	g := t.Features[0].Geom
	switch g.(type) {
	case *geom.Polygon, *geom.MultiPolygon:
		return g, true
	}
	return g, false
}

func asElmID(v any) (int64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case float64:
		return int64(x), true
	case string:
		if x == "" {
			return 0, false
		}
		if n, err := strconv.ParseFloat(x, 64); err == nil {
			return int64(n), true
		}
		return 0, false
	default:
		return 0, false
	}
}
