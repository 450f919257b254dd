package maptables

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dutchveg/dsmap/internal/table"
)

func tbl(t *testing.T, name string, columns []string, rows ...[]any) *table.Table {
	t.Helper()
	out := table.New(name, columns)
	for _, row := range rows {
		require.NoError(t, out.Append(row))
	}
	return out
}

func fixtureTables(t *testing.T) map[string]*table.Table {
	t.Helper()
	return map[string]*table.Table{
		"Element": tbl(t, "Element",
			[]string{"Intern_ID", "ElmID", "LocatieType", "Datum", "SbbType"},
			[]any{"1", int64(101), "V", "1995-06-01 00:00:00", "301"},
			[]any{"2", int64(102), "l", "1995-06-02 00:00:00", "302"},
			[]any{"3", int64(103), "v", nil, "303"},
		),
		"KarteringVegetatietype": tbl(t, "KarteringVegetatietype",
			[]string{"Locatie", "Vegetatietype", "Bedekking", "Bedekking_num"},
			[]any{"1", "25a1", "t", int64(100)},
			[]any{"1", "25a2", "a", int64(60)},
			[]any{"3", "09b", "t", int64(100)},
		),
		"VegetatieType": tbl(t, "VegetatieType",
			[]string{"TypeNummer", "Code", "Gemeenschap", "Vorm", "SbbType"},
			[]any{int64(1), "25a1", "Droog eikenbos", "mozaiek", "301"},
			[]any{int64(2), "25a2", "Vochtig eikenbos", "vlak", "302"},
			[]any{int64(3), "09b", "Rietland", "vlak", "303"},
		),
		"SbbType": tbl(t, "SbbType",
			[]string{"Cata_ID", "Code", "LandTypeWet", "LandTypeNed", "VerbrgNaamNed", "Vervangbaarheid"},
			[]any{"301", "42A1", "Quercion", "Eikenbos", "eiken", "5.0"},
			[]any{"302", "42A2", "Quercion", "Eikenbos vochtig", "eiken", "3"},
			[]any{"303", "08B1", "Phragmition", "Rietland", "riet", "1.0"},
		),
		"KarteringSoort": tbl(t, "KarteringSoort",
			[]string{"Locatie", "SoortCode", "Bedekking", "AantalsKlasse", "Bedekking_num"},
			[]any{"1", "644", "t", int64(2), int64(100)},
			[]any{"9", "802", "a", int64(1), int64(60)},
		),
		"CbsSoort": tbl(t, "CbsSoort",
			[]string{"SoortNr", "Wetenschap", "Nederlands"},
			[]any{"644", "Quercus robur", "Zomereik"},
			[]any{"802", "Phragmites australis", "Riet"},
		),
		"KarteringAbiotiek": tbl(t, "KarteringAbiotiek",
			[]string{"Locatie", "Abiotiek"},
			[]any{"1", "dr"},
		),
		"Abiotiek": tbl(t, "Abiotiek",
			[]string{"Code", "Omschrijving"},
			[]any{"dr", "droog"},
		),
		"PuntLocatieSoort": tbl(t, "PuntLocatieSoort",
			[]string{"ID", "LocType", "X_coord", "Y_coord", "Groep", "Nummer", "Naam", "Wetens", "Sbb_kl", "Tansley", "Datum", "Waarn", "Opm"},
			[]any{int64(1), "p", 230001.5, 557020.0, "flora", "644", "Zomereik", "Quercus robur", "42", "s", "1995-06-01 00:00:00", "JD", ""},
		),
	}
}

func TestNewRequiresCoreTables(t *testing.T) {
	raw := fixtureTables(t)
	delete(raw, "SbbType")
	_, err := New("broken.mdb", raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SbbType")
}

func TestNewNormalizes(t *testing.T) {
	s, err := New("test.mdb", fixtureTables(t))
	require.NoError(t, err)

	elm, ok := s.Table("Element")
	require.True(t, ok)
	_, ok = elm.ColumnIndex("locatie_id")
	assert.True(t, ok, "intern_id renamed to locatie_id")

	// locatietype forced to lowercase
	vals, err := elm.Column("locatietype")
	require.NoError(t, err)
	assert.Equal(t, []any{"v", "l", "v"}, vals)

	// replacement codes exported as floats are cut to the first digit
	sbb, _ := s.Table("SbbType")
	codes, err := sbb.Column("sbbcat_vervangbaarheid")
	require.NoError(t, err)
	assert.Equal(t, []any{"5", "3", "1"}, codes)

	assert.Equal(t, 3, s.Len())
}

func TestNewRenamesSbbtypeAlias(t *testing.T) {
	raw := fixtureTables(t)
	raw["Element"] = tbl(t, "Element",
		[]string{"Intern_ID", "ElmID", "LocatieType", "Datum", "SbbType1"},
		[]any{"1", int64(101), "v", nil, "301"},
	)
	s, err := New("test.mdb", raw)
	require.NoError(t, err)

	elm, _ := s.Table("Element")
	_, ok := elm.ColumnIndex("sbbtype")
	assert.True(t, ok)
}

func TestVegtype(t *testing.T) {
	s, err := New("test.mdb", fixtureTables(t))
	require.NoError(t, err)

	veg, err := s.Vegtype()
	require.NoError(t, err)
	assert.Equal(t, vegtypeColumns, veg.Columns)
	// elements 101 (two types) and 103 (one); the line element is excluded
	require.Equal(t, 3, veg.Len())

	v, err := veg.Value(0, "elmid")
	require.NoError(t, err)
	assert.Equal(t, int64(101), v)

	datum, err := veg.Value(0, "datum")
	require.NoError(t, err)
	assert.Equal(t, "01061995", datum)

	naam, err := veg.Value(2, "vegtype_naam")
	require.NoError(t, err)
	assert.Equal(t, "Rietland", naam)
}

func TestMapSpecies(t *testing.T) {
	s, err := New("test.mdb", fixtureTables(t))
	require.NoError(t, err)

	spec, err := s.MapSpecies(LocTypeAll)
	require.NoError(t, err)
	// right join keeps the species row whose element is missing
	require.Equal(t, 2, spec.Len())

	_, ok := spec.ColumnIndex("locatie_id")
	assert.False(t, ok)

	wet, err := spec.Value(0, "cbs_srtwet")
	require.NoError(t, err)
	assert.Equal(t, "Quercus robur", wet)

	only, err := s.MapSpecies(LocTypePolygon)
	require.NoError(t, err)
	assert.Equal(t, 1, only.Len())

	_, err = s.MapSpecies("x")
	assert.Error(t, err)
}

func TestAbiotiek(t *testing.T) {
	s, err := New("test.mdb", fixtureTables(t))
	require.NoError(t, err)

	abi, err := s.Abiotiek(LocTypeAll)
	require.NoError(t, err)
	// elements without an observation are filtered out with the nulls
	require.Equal(t, 1, abi.Len())

	wrn, err := abi.Value(0, "abio_wrn")
	require.NoError(t, err)
	assert.Equal(t, "droog", wrn)
}

func TestPointSpecies(t *testing.T) {
	s, err := New("test.mdb", fixtureTables(t))
	require.NoError(t, err)

	pnt, err := s.PointSpecies()
	require.NoError(t, err)
	require.Equal(t, 1, pnt.Len())

	datum, err := pnt.Value(0, "srtdatum")
	require.NoError(t, err)
	assert.Equal(t, "01061995", datum)
}

func TestYear(t *testing.T) {
	s, err := New("test.mdb", fixtureTables(t))
	require.NoError(t, err)
	assert.Equal(t, "1995", s.Year())
}

func TestYearRangeAndMissing(t *testing.T) {
	raw := fixtureTables(t)
	raw["Element"] = tbl(t, "Element",
		[]string{"Intern_ID", "ElmID", "LocatieType", "Datum", "SbbType"},
		[]any{"1", int64(101), "v", "1995-06-01 00:00:00", "301"},
		[]any{"2", int64(102), "v", "1998-08-01 00:00:00", "301"},
	)
	s, err := New("test.mdb", raw)
	require.NoError(t, err)
	assert.Equal(t, "1995-1998", s.Year())

	raw["Element"] = tbl(t, "Element",
		[]string{"Intern_ID", "ElmID", "LocatieType", "Datum", "SbbType"},
		[]any{"1", int64(101), "v", nil, "301"},
	)
	s, err = New("test.mdb", raw)
	require.NoError(t, err)
	assert.Equal(t, "0000", s.Year())
}
