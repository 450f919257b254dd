package shape

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// DutchGridSRID is the fixed fallback coordinate reference system for
// sources that omit one: the Dutch national grid (RD New).
const DutchGridSRID = 28992

// minRingPoints is the geometric validity floor for a polygon ring.
const minRingPoints = 3

// polygonToGeom converts a shapefile polygon to a MultiPolygon, dropping
// rings with fewer than three points. Returns the number of dropped rings;
// the geometry is nil when no ring survives.
func polygonToGeom(p *shp.Polygon, srid int) (geom.T, int) {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil, 0
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(srid)
	badRings := 0

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		var end int32
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		} else {
			end = int32(len(p.Points))
		}

		if end-start < minRingPoints {
			badRings++
			continue
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		ring := geom.NewLinearRingFlat(geom.XY, flat)
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			badRings++
			continue
		}
		if err := mp.Push(poly); err != nil {
			badRings++
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil, badRings
	}
	return mp, badRings
}

// polyLineToGeom converts a shapefile polyline to a MultiLineString.
func polyLineToGeom(pl *shp.PolyLine, srid int) geom.T {
	if pl == nil || pl.NumParts == 0 || len(pl.Points) == 0 {
		return nil
	}

	mls := geom.NewMultiLineString(geom.XY).SetSRID(srid)
	for i := int32(0); i < pl.NumParts; i++ {
		start := pl.Parts[i]
		var end int32
		if i+1 < pl.NumParts {
			end = pl.Parts[i+1]
		} else {
			end = int32(len(pl.Points))
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, pl.Points[j].X, pl.Points[j].Y)
		}
		ls := geom.NewLineStringFlat(geom.XY, flat)
		if err := mls.Push(ls); err != nil {
			continue
		}
	}

	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

// pointToGeom converts a shapefile point.
func pointToGeom(p *shp.Point, srid int) geom.T {
	if p == nil {
		return nil
	}
	return geom.NewPointFlat(geom.XY, []float64{p.X, p.Y}).SetSRID(srid)
}

// EncodeEWKB serializes a geometry as little-endian EWKB, carrying its SRID.
func EncodeEWKB(g geom.T) ([]byte, error) {
	if g == nil {
		return nil, nil
	}
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "shape: encode EWKB")
	}
	return data, nil
}

// AreaHa returns the planar area of a polygonal geometry in hectares.
// Non-polygonal geometries have zero area.
func AreaHa(g geom.T) float64 {
	switch p := g.(type) {
	case *geom.Polygon:
		return p.Area() / 10000
	case *geom.MultiPolygon:
		return p.Area() / 10000
	default:
		return 0
	}
}
