// Package shape reads and writes legacy ESRI shapefiles. Reading is
// best-effort: the two well-characterized corruption classes of the source
// corpus (missing or corrupt .shx index, polygon rings with fewer than
// three points) are repaired with a logged, scoped fix, and every record
// that cannot be salvaged is accounted for in the repair log.
package shape

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
)

// Options configures a read.
type Options struct {
	// FixPermissions permits chmod'ing a read-only .shx sidecar before the
	// read. With it off the reader fails closed and leaves the filesystem
	// untouched.
	FixPermissions bool
	// SRID tags the output when the source carries no reference system.
	// Zero means the Dutch national grid (EPSG:28992).
	SRID int
}

// Feature is one decoded record: its stable identifier, attribute values in
// column order, and geometry. Geometry is never nil in a returned feature.
type Feature struct {
	FID   int
	Attrs []any
	Geom  geom.T
}

// Table is the decoded content of one shapefile.
type Table struct {
	Path     string
	SRID     int
	Columns  []string // lowercased attribute names, source order
	Features []Feature
	Warnings []string
	RawCount int // records in the raw source, dropped or not
}

// RepairEntry records one fix applied while reading. DroppedFeature is set
// when the entry accounts for a whole record removed from the output, so
// that len(Features) + count(dropped entries) == RawCount always holds.
type RepairEntry struct {
	FID            int
	Err            string
	Resolution     string
	DroppedFeature bool
}

// Value returns the attribute value of a feature by column name.
func (t *Table) Value(f Feature, column string) any {
	for i, c := range t.Columns {
		if c == column {
			return f.Attrs[i]
		}
	}
	return nil
}

// ColumnIndex returns the position of an attribute column.
func (t *Table) ColumnIndex(column string) (int, bool) {
	for i, c := range t.Columns {
		if c == column {
			return i, true
		}
	}
	return -1, false
}

// Open decodes one shapefile. Recognized corruption is repaired and logged;
// anything else fails with a wrapped decode error. The returned repair log
// accounts for every dropped ring and record.
func Open(path string, opts Options) (*Table, []RepairEntry, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, nil, eris.Errorf("shape: %s is not a valid filepath", path)
	}

	srid := opts.SRID
	if srid == 0 {
		srid = DutchGridSRID
	}

	tbl := &Table{Path: path, SRID: srid}

	if err := fixIndexPermissions(path, opts.FixPermissions); err != nil {
		return nil, nil, err
	}

	// Archives routinely lack the .shx sidecar or carry a truncated one.
	// Rebuild it from the main file under the scoped restore flag, so the
	// global rebuild mode is never left enabled for unrelated opens.
	if idxErr := ValidateIndex(path); idxErr != nil {
		err := withRestoreIndex(func() error {
			return RebuildIndex(path)
		})
		if err != nil {
			return nil, nil, eris.Wrapf(err, "shape: repair index for %s", path)
		}
		tbl.Warnings = append(tbl.Warnings,
			fmt.Sprintf("rebuilt index: %s", eris.Cause(idxErr)))
	}

	rawCount, err := countRecords(path)
	if err != nil {
		return nil, nil, err
	}
	tbl.RawCount = rawCount

	reader, err := shp.Open(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "shape: open %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	columns, err := lowerColumns(path, fields)
	if err != nil {
		return nil, nil, err
	}
	tbl.Columns = columns

	var repairs []RepairEntry
	dropped := 0

	for reader.Next() {
		fid, s := reader.Shape()

		g, entry, fatal := decodeGeometry(fid, s, srid)
		if fatal != nil {
			return nil, nil, eris.Wrapf(fatal, "shape: decode %s", path)
		}
		if entry != nil {
			repairs = append(repairs, *entry)
			logRepair(path, *entry)
		}
		if g == nil {
			dropped++
			continue
		}

		attrs := make([]any, len(fields))
		for i, f := range fields {
			attrs[i] = convertAttr(f, reader.Attribute(i))
		}
		tbl.Features = append(tbl.Features, Feature{FID: fid, Attrs: attrs, Geom: g})
	}
	if err := reader.Err(); err != nil {
		return nil, nil, eris.Wrapf(err, "shape: read records from %s", path)
	}

	if len(tbl.Features)+dropped != rawCount {
		return nil, nil, eris.Errorf(
			"shape: %s record accounting mismatch: %d decoded + %d dropped != %d raw",
			path, len(tbl.Features), dropped, rawCount)
	}

	if len(tbl.Features) == 0 {
		tbl.Warnings = append(tbl.Warnings, "empty shapefile")
		zap.L().Warn("shape: empty shapefile", zap.String("path", path))
	}

	return tbl, repairs, nil
}

// decodeGeometry converts one record's shape. It returns a nil geometry
// with a repair entry when the record is dropped, a geometry with an
// optional entry when it survives a ring repair, or a fatal error for
// shape types outside the corpus.
func decodeGeometry(fid int, s shp.Shape, srid int) (geom.T, *RepairEntry, error) {
	switch v := s.(type) {
	case nil, *shp.Null:
		return nil, &RepairEntry{
			FID:            fid,
			Err:            "geometry is null",
			Resolution:     fmt.Sprintf("dropped record with fid=%d", fid),
			DroppedFeature: true,
		}, nil

	case *shp.Polygon:
		g, badRings := polygonToGeom(v, srid)
		if badRings == 0 {
			if g == nil {
				return nil, &RepairEntry{
					FID:            fid,
					Err:            "polygon has no rings",
					Resolution:     fmt.Sprintf("dropped record with fid=%d", fid),
					DroppedFeature: true,
				}, nil
			}
			return g, nil, nil
		}
		entry := &RepairEntry{
			FID: fid,
			Err: fmt.Sprintf("found %d polygon rings with less than three points", badRings),
		}
		if g == nil {
			entry.Resolution = fmt.Sprintf("dropped record with fid=%d, no valid rings left", fid)
			entry.DroppedFeature = true
			return nil, entry, nil
		}
		entry.Resolution = fmt.Sprintf("dropped %d invalid rings", badRings)
		return g, entry, nil

	case *shp.PolyLine:
		g := polyLineToGeom(v, srid)
		if g == nil {
			return nil, &RepairEntry{
				FID:            fid,
				Err:            "polyline has no coordinates",
				Resolution:     fmt.Sprintf("dropped record with fid=%d", fid),
				DroppedFeature: true,
			}, nil
		}
		return g, nil, nil

	case *shp.Point:
		g := pointToGeom(v, srid)
		if g == nil {
			return nil, &RepairEntry{
				FID:            fid,
				Err:            "point has no coordinates",
				Resolution:     fmt.Sprintf("dropped record with fid=%d", fid),
				DroppedFeature: true,
			}, nil
		}
		return g, nil, nil

	default:
		return nil, nil, eris.Errorf("unsupported shape type %T for fid=%d", s, fid)
	}
}

// fixIndexPermissions relaxes a read-only .shx before the read. The legacy
// toolchain needs write access to the index even for reading, and archives
// restored from read-only media inherit the read-only bit. Check-then-fix:
// writable files are left untouched.
func fixIndexPermissions(shpPath string, allowed bool) error {
	shxPath := sidecarPath(shpPath, ".shx")
	info, err := os.Stat(shxPath)
	if err != nil {
		return nil // no index; rebuild path handles it
	}
	if info.Mode().Perm()&0o200 != 0 {
		return nil
	}
	if !allowed {
		return eris.Errorf("shape: index %s is read-only and permission fixes are disabled", shxPath)
	}
	if err := os.Chmod(shxPath, info.Mode().Perm()|0o600); err != nil {
		return eris.Wrapf(err, "shape: chmod index %s", shxPath)
	}
	zap.L().Warn("shape: relaxed read-only permission on index",
		zap.String("shx", shxPath))
	return nil
}

// lowerColumns lowercases field names. Distinct source names collapsing to
// the same lowercase name are reported, never merged.
func lowerColumns(path string, fields []shp.Field) ([]string, error) {
	columns := make([]string, len(fields))
	seen := make(map[string]string, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		lc := strings.ToLower(name)
		if prev, dup := seen[lc]; dup {
			return nil, eris.Errorf("shape: %s columns %q and %q collide after lowercasing", path, prev, name)
		}
		seen[lc] = name
		columns[i] = lc
	}
	return columns, nil
}

// convertAttr converts a raw DBF attribute to a typed value. Legacy exports
// are Windows-1252 encoded; text fields are transcoded to UTF-8. Values
// that fail numeric parsing are kept as strings rather than lost.
func convertAttr(f shp.Field, raw string) any {
	val := strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	if val == "" {
		return nil
	}
	switch f.Fieldtype {
	case 'N':
		if f.Precision == 0 {
			if n, err := strconv.ParseInt(val, 10, 64); err == nil {
				return n
			}
		}
		if x, err := strconv.ParseFloat(val, 64); err == nil {
			return x
		}
		return decodeText(val)
	case 'F':
		if x, err := strconv.ParseFloat(val, 64); err == nil {
			return x
		}
		return decodeText(val)
	case 'L':
		return val == "T" || val == "t" || val == "Y" || val == "y"
	default:
		return decodeText(val)
	}
}

func decodeText(val string) string {
	out, err := charmap.Windows1252.NewDecoder().String(val)
	if err != nil {
		return val
	}
	return out
}

func logRepair(path string, e RepairEntry) {
	zap.L().Warn("shape: repaired record",
		zap.String("path", path),
		zap.Int("fid", e.FID),
		zap.String("error", e.Err),
		zap.String("resolution", e.Resolution),
	)
}
