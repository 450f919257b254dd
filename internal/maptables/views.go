package maptables

import (
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/dutchveg/dsmap/internal/table"
)

// Location type codes of mapped elements.
const (
	LocTypeAll     = "all"
	LocTypePolygon = "v"
	LocTypeLine    = "l"
)

func validLocType(loctype string) error {
	switch loctype {
	case LocTypeAll, LocTypePolygon, LocTypeLine:
		return nil
	}
	return eris.Errorf("maptables: invalid loctype %q", loctype)
}

// vegtypeColumns is the fixed output order of the vegetation type view.
var vegtypeColumns = []string{
	"elmid", "datum", "locatietype", "vegtype_code",
	"vegtype_naam", "vegtype_vorm", "vegtype_bedekkingcode",
	"vegtype_bedekkingnum",
	"sbbcat_code", "sbbcat_wetnaam", "sbbcat_nednaam",
	"sbbcat_kortenaam", "sbbcat_vervangbaarheid",
}

// Vegtype returns the vegetation type of each mapped polygon element. An
// element can carry several types, so elmid is not unique in the result;
// the bedekking columns give the cover of each type within the polygon.
func (s *Set) Vegtype() (*table.Table, error) {
	element, err := s.tables["Element"].Select("locatie_id", "elmid", "locatietype", "datum")
	if err != nil {
		return nil, eris.Wrap(err, "maptables: vegtype view")
	}
	element = element.Filter(func(row []any) bool {
		return table.KeyString(row[2]) == LocTypePolygon
	})

	joined, warns, err := table.Join(element, s.tables["KarteringVegetatietype"],
		"locatie_id", "locatie_id", table.Inner, table.OneToMany)
	if err != nil {
		return nil, eris.Wrap(err, "maptables: vegtype view")
	}
	s.Warnings = append(s.Warnings, warns...)

	joined, warns, err = table.Join(joined, s.tables["VegetatieType"],
		"vegtype_code", "vegtype_code", table.Inner, table.ManyToOne)
	if err != nil {
		return nil, eris.Wrap(err, "maptables: vegtype view")
	}
	s.Warnings = append(s.Warnings, warns...)

	joined, warns, err = table.Join(joined, s.tables["SbbType"],
		"sbbcat_id", "sbbcat_id", table.Inner, table.ManyToOne)
	if err != nil {
		return nil, eris.Wrap(err, "maptables: vegtype view")
	}
	s.Warnings = append(s.Warnings, warns...)

	formatDateColumn(joined, "datum")

	out, err := joined.Select(vegtypeColumns...)
	if err != nil {
		return nil, eris.Wrap(err, "maptables: vegtype view")
	}
	out.Name = "vegtype"
	return out, nil
}

// MapSpecies returns the species observations attached to mapped elements,
// optionally restricted to one location type. Multiple species per element
// are normal, so elmid is not unique in the result.
func (s *Set) MapSpecies(loctype string) (*table.Table, error) {
	if err := validLocType(loctype); err != nil {
		return nil, err
	}
	krtsrt, ok := s.tables["KarteringSoort"]
	if !ok {
		return nil, eris.New("maptables: no KarteringSoort table")
	}
	cbsSrc, ok := s.tables["CbsSoort"]
	if !ok {
		return nil, eris.New("maptables: no CbsSoort table")
	}

	element, err := s.tables["Element"].Select("locatie_id", "elmid", "locatietype", "datum", "sbbtype")
	if err != nil {
		return nil, eris.Wrap(err, "maptables: mapspecies view")
	}

	// Right join: every species record survives, even for elements the
	// Element table lost.
	joined, warns, err := table.Join(element, krtsrt,
		"locatie_id", "locatie_id", table.Right, table.OneToMany)
	if err != nil {
		return nil, eris.Wrap(err, "maptables: mapspecies view")
	}
	s.Warnings = append(s.Warnings, warns...)

	cbs, err := cbsSrc.Select("cbs_srtcode", "cbs_srtwet", "cbs_srtned")
	if err != nil {
		return nil, eris.Wrap(err, "maptables: mapspecies view")
	}
	joined, warns, err = table.Join(joined, cbs,
		"krtsrt_srtcode", "cbs_srtcode", table.Left, table.ManyToOne)
	if err != nil {
		return nil, eris.Wrap(err, "maptables: mapspecies view")
	}
	s.Warnings = append(s.Warnings, warns...)

	out := joined.Drop("locatie_id")
	out = filterLocType(out, loctype)
	out.Name = "mapspecies"
	return out, nil
}

// Abiotiek returns the environmental field observations attached to mapped
// elements, optionally restricted to one location type.
func (s *Set) Abiotiek(loctype string) (*table.Table, error) {
	if err := validLocType(loctype); err != nil {
		return nil, err
	}
	krtabi, ok := s.tables["KarteringAbiotiek"]
	if !ok {
		return nil, eris.New("maptables: no KarteringAbiotiek table")
	}
	abicode, ok := s.tables["Abiotiek"]
	if !ok {
		return nil, eris.New("maptables: no Abiotiek table")
	}

	element, err := s.tables["Element"].Select("locatie_id", "elmid", "locatietype", "datum")
	if err != nil {
		return nil, eris.Wrap(err, "maptables: abiotiek view")
	}

	joined, warns, err := table.Join(element, krtabi,
		"locatie_id", "locatie_id", table.Left, table.OneToMany)
	if err != nil {
		return nil, eris.Wrap(err, "maptables: abiotiek view")
	}
	s.Warnings = append(s.Warnings, warns...)

	joined, warns, err = table.Join(joined, abicode,
		"abio_code", "abio_code", table.Left, table.ManyToOne)
	if err != nil {
		return nil, eris.Wrap(err, "maptables: abiotiek view")
	}
	s.Warnings = append(s.Warnings, warns...)

	out := filterLocType(joined, loctype).Drop("locatie_id")

	idx, _ := out.ColumnIndex("abio_code")
	out = out.Filter(func(row []any) bool {
		return row[idx] != nil && table.KeyString(row[idx]) != ""
	})
	out.Name = "abiotiek"
	return out, nil
}

// PointSpecies returns the point locations of mapped plant species.
func (s *Set) PointSpecies() (*table.Table, error) {
	src, ok := s.tables["PuntLocatieSoort"]
	if !ok {
		return nil, eris.New("maptables: no PuntLocatieSoort table")
	}
	out := src.Copy()
	formatDateColumn(out, "srtdatum")
	out.Name = "pointspecies"
	return out, nil
}

// Year returns the mapping year derived from the element dates: "0000"
// when no dates are present, a single year, or a "min-max" range when the
// mapping spans years.
func (s *Set) Year() string {
	idx, ok := s.tables["Element"].ColumnIndex("datum")
	if !ok {
		return "0000"
	}
	minYear, maxYear := 0, 0
	for _, row := range s.tables["Element"].Rows {
		t, ok := asTime(row[idx])
		if !ok {
			continue
		}
		y := t.Year()
		if minYear == 0 || y < minYear {
			minYear = y
		}
		if y > maxYear {
			maxYear = y
		}
	}
	switch {
	case minYear == 0:
		return "0000"
	case minYear == maxYear:
		return strconv.Itoa(minYear)
	default:
		return strconv.Itoa(minYear) + "-" + strconv.Itoa(maxYear)
	}
}

func filterLocType(t *table.Table, loctype string) *table.Table {
	if loctype == LocTypeAll {
		return t
	}
	idx, ok := t.ColumnIndex("locatietype")
	if !ok {
		return t
	}
	return t.Filter(func(row []any) bool {
		return table.KeyString(row[idx]) == loctype
	})
}

func formatDateColumn(t *table.Table, name string) {
	idx, ok := t.ColumnIndex(name)
	if !ok {
		return
	}
	for _, row := range t.Rows {
		row[idx] = asDateString(row[idx])
	}
}
