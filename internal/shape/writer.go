package shape

import (
	"fmt"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// dbfNameLen is the hard field-name limit of the DBF format.
const dbfNameLen = 10

// maxTextLen caps DBF character fields.
const maxTextLen = 254

// Write exports rows with geometries as an ESRI shapefile. Column names
// longer than ten characters are truncated; truncations that collide are
// reported, never silently merged. Every geometry must share the shape
// type of the first one. Date values must be pre-formatted strings.
func Write(path string, columns []string, rows [][]any, geoms []geom.T) error {
	if len(rows) != len(geoms) {
		return eris.Errorf("shape: %d rows but %d geometries", len(rows), len(geoms))
	}
	if len(geoms) == 0 {
		return eris.Errorf("shape: refusing to write empty shapefile %s", path)
	}

	names, err := TruncateColumns(columns)
	if err != nil {
		return err
	}

	shapes := make([]shp.Shape, len(geoms))
	shapeType, err := shapeTypeOf(geoms[0])
	if err != nil {
		return eris.Wrapf(err, "shape: write %s", path)
	}
	for i, g := range geoms {
		st, err := shapeTypeOf(g)
		if err != nil {
			return eris.Wrapf(err, "shape: write %s row %d", path, i)
		}
		if st != shapeType {
			return eris.Errorf("shape: write %s: mixed shape types %v and %v", path, shapeType, st)
		}
		shapes[i] = geomToShape(g)
	}

	fields := make([]shp.Field, len(columns))
	for i := range columns {
		fields[i] = buildField(names[i], column(rows, i))
	}

	w, err := shp.Create(path, shapeType)
	if err != nil {
		return eris.Wrapf(err, "shape: create %s", path)
	}
	defer w.Close()

	w.SetFields(fields)
	for i, s := range shapes {
		w.Write(s)
		for j := range fields {
			if err := w.WriteAttribute(i, j, attrValue(rows[i][j])); err != nil {
				return eris.Wrapf(err, "shape: write %s attribute row=%d col=%s", path, i, names[j])
			}
		}
	}
	return nil
}

// TruncateColumns shortens names to the DBF ten-character limit. Two names
// collapsing onto the same truncation is an error.
func TruncateColumns(columns []string) ([]string, error) {
	out := make([]string, len(columns))
	seen := make(map[string]string, len(columns))
	for i, c := range columns {
		name := c
		if len(name) > dbfNameLen {
			name = name[:dbfNameLen]
		}
		if prev, dup := seen[name]; dup {
			return nil, eris.Errorf("shape: columns %q and %q both truncate to %q", prev, c, name)
		}
		seen[name] = c
		out[i] = name
	}
	return out, nil
}

func shapeTypeOf(g geom.T) (shp.ShapeType, error) {
	switch g.(type) {
	case *geom.Polygon, *geom.MultiPolygon:
		return shp.POLYGON, nil
	case *geom.LineString, *geom.MultiLineString:
		return shp.POLYLINE, nil
	case *geom.Point:
		return shp.POINT, nil
	default:
		return shp.NULL, eris.Errorf("unsupported geometry type %T", g)
	}
}

// geomToShape converts back to the shapefile representation. NewPolyLine
// computes the bounding box; Polygon shares PolyLine's layout.
func geomToShape(g geom.T) shp.Shape {
	switch v := g.(type) {
	case *geom.Polygon:
		pl := shp.NewPolyLine(ringParts(polygonRings(v)))
		poly := shp.Polygon(*pl)
		return &poly
	case *geom.MultiPolygon:
		var rings [][]geom.Coord
		for i := 0; i < v.NumPolygons(); i++ {
			rings = append(rings, polygonRings(v.Polygon(i))...)
		}
		pl := shp.NewPolyLine(ringParts(rings))
		poly := shp.Polygon(*pl)
		return &poly
	case *geom.LineString:
		return shp.NewPolyLine(ringParts([][]geom.Coord{v.Coords()}))
	case *geom.MultiLineString:
		var parts [][]geom.Coord
		for i := 0; i < v.NumLineStrings(); i++ {
			parts = append(parts, v.LineString(i).Coords())
		}
		return shp.NewPolyLine(ringParts(parts))
	case *geom.Point:
		return &shp.Point{X: v.X(), Y: v.Y()}
	default:
		return &shp.Null{}
	}
}

func polygonRings(p *geom.Polygon) [][]geom.Coord {
	rings := make([][]geom.Coord, 0, p.NumLinearRings())
	for i := 0; i < p.NumLinearRings(); i++ {
		rings = append(rings, p.LinearRing(i).Coords())
	}
	return rings
}

func ringParts(parts [][]geom.Coord) [][]shp.Point {
	out := make([][]shp.Point, len(parts))
	for i, part := range parts {
		pts := make([]shp.Point, len(part))
		for j, c := range part {
			pts[j] = shp.Point{X: c.X(), Y: c.Y()}
		}
		out[i] = pts
	}
	return out
}

func column(rows [][]any, i int) []any {
	vals := make([]any, len(rows))
	for r := range rows {
		vals[r] = rows[r][i]
	}
	return vals
}

// buildField picks a DBF field type by scanning column values. Integer
// columns become number fields, floats become float fields, everything
// else is text sized to the longest value.
func buildField(name string, vals []any) shp.Field {
	allInt, allNum := true, true
	width := 1
	for _, v := range vals {
		switch v.(type) {
		case nil:
		case int, int32, int64:
		case float64, float32:
			allInt = false
		default:
			allInt, allNum = false, false
		}
		if l := len(attrString(v)); l > width {
			width = l
		}
	}
	switch {
	case allInt:
		return shp.NumberField(name, 19)
	case allNum:
		return shp.FloatField(name, 19, 6)
	default:
		if width > maxTextLen {
			width = maxTextLen
		}
		return shp.StringField(name, uint8(width))
	}
}

// attrValue narrows values to the types the DBF writer accepts.
func attrValue(v any) interface{} {
	switch x := v.(type) {
	case nil:
		return ""
	case int64:
		return int(x)
	case int32:
		return int(x)
	case float32:
		return float64(x)
	case bool:
		if x {
			return "T"
		}
		return "F"
	default:
		return v
	}
}

func attrString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
