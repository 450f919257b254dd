// Package maptables wraps the attribute tables of one project database and
// derives the domain views that join elements, vegetation types, species
// and field observations. Mapped elements are polygons or lines; their
// spatial data lives in shapefiles and links to these tables on elmid.
package maptables

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dutchveg/dsmap/internal/mapdb"
	"github.com/dutchveg/dsmap/internal/table"
)

// requiredTables must all be present for a database to count as a valid
// Digital Standard export.
var requiredTables = []string{
	"Element", "KarteringVegetatietype", "VegetatieType", "SbbType",
}

// renameColumns maps raw column names (after lowercasing) to the stable
// names the views are built on, per source table.
var renameColumns = map[string]map[string]string{
	"Element": {
		"intern_id": "locatie_id",
	},
	"KarteringVegetatietype": {
		"locatie":       "locatie_id",
		"vegetatietype": "vegtype_code",
		"bedekking":     "vegtype_bedekkingcode",
		"bedekking_num": "vegtype_bedekkingnum",
	},
	"VegetatieType": {
		"typenummer":  "vegtype_nr",
		"code":        "vegtype_code",
		"gemeenschap": "vegtype_naam",
		"vorm":        "vegtype_vorm",
		"sbbtype":     "sbbcat_id",
		"sbbtype2":    "sbbcat2_id",
		"opmerking":   "vegtype_note",
	},
	"SbbType": {
		"cata_id":         "sbbcat_id",
		"versie":          "sbbcat_versie",
		"code":            "sbbcat_code",
		"klassenaamned":   "sbbcat_klassenaam",
		"verbrgnaamned":   "sbbcat_kortenaam",
		"asscocrgnaamned": "sbbcat_assrgnaam",
		"subassocnaamned": "sbbcat_subassnaam",
		"landtypened":     "sbbcat_nednaam",
		"landtypewet":     "sbbcat_wetnaam",
		"vervallen":       "sbbcat_vervallen",
		"vervangbaarheid": "sbbcat_vervangbaarheid",
	},
	"KarteringSoort": {
		"locatie":       "locatie_id",
		"soortcode":     "krtsrt_srtcode",
		"bedekking":     "krtsrt_bedcode",
		"aantalsklasse": "krtsrt_aantalsklasse",
		"bedekking_num": "krtsrt_bednum",
	},
	"CbsSoort": {
		"soortnr":             "cbs_srtcode",
		"floron":              "cbs_floron",
		"wetenschap":          "cbs_srtwet",
		"nederlands":          "cbs_srtned",
		"zeldzaamheidsklasse": "cbs_zeldzaamheid",
		"trendklasse":         "cbs_trend",
		"rl2000":              "cbs_rl2000",
		"rl2000kort":          "cbs_rl2000kort",
	},
	"PuntLocatieSoort": {
		"id":      "pntid",
		"loctype": "pntloctype",
		"x_coord": "xcr",
		"y_coord": "ycr",
		"groep":   "srtgroep",
		"nummer":  "srtnr",
		"naam":    "srtnednaam",
		"wetens":  "srtwetnaam",
		"sbb_kl":  "srtsbbkl",
		"tansley": "srttansley",
		"datum":   "srtdatum",
		"waarn":   "srtwrnmr",
		"opm":     "srtopm",
	},
	"KarteringAbiotiek": {
		"locatie":  "locatie_id",
		"abiotiek": "abio_code",
	},
	"Abiotiek": {
		"code":         "abio_code",
		"omschrijving": "abio_wrn",
	},
}

// Set is the table collection of one project database, columns lowercased
// and renamed to the stable vocabulary.
type Set struct {
	tables   map[string]*table.Table
	Warnings []table.Warning
}

// FromStore fetches all tables of an opened database and normalizes them.
func FromStore(ctx context.Context, store *mapdb.Store) (*Set, error) {
	raw, err := store.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	return New(store.Path(), raw)
}

// New normalizes an already-fetched table collection: lowercase column
// names, rename to the stable vocabulary, and apply the small per-table
// fixes the archive is known to need.
func New(source string, raw map[string]*table.Table) (*Set, error) {
	for _, name := range requiredTables {
		if _, ok := raw[name]; !ok {
			return nil, eris.Errorf("maptables: %s is not a valid Digital Standard database, missing table %s", source, name)
		}
	}

	tables := make(map[string]*table.Table, len(raw))
	for name, tbl := range raw {
		t := tbl.Copy()
		if err := t.LowerColumns(); err != nil {
			return nil, eris.Wrapf(err, "maptables: %s", source)
		}
		if mapping, ok := renameColumns[name]; ok {
			t.Rename(mapping)
		}
		tables[name] = t
	}

	s := &Set{tables: tables}
	s.applyFixes(source)
	return s, nil
}

// Table returns one normalized source table.
func (s *Set) Table(name string) (*table.Table, bool) {
	t, ok := s.tables[name]
	return t, ok
}

// Len returns the number of mapped elements.
func (s *Set) Len() int {
	return s.tables["Element"].Len()
}

// applyFixes repairs the recurring single-file defects of the archive:
// mixed-case location types, a misspelled sbbtype column, and replacement
// codes exported as floats ("5.0" for "5").
func (s *Set) applyFixes(source string) {
	elm := s.tables["Element"]
	if idx, ok := elm.ColumnIndex("locatietype"); ok {
		for _, row := range elm.Rows {
			if v, ok := row[idx].(string); ok {
				row[idx] = strings.ToLower(v)
			}
		}
	}
	if _, hasSbb := elm.ColumnIndex("sbbtype"); !hasSbb {
		if _, hasAlias := elm.ColumnIndex("sbbtype1"); hasAlias {
			elm.Rename(map[string]string{"sbbtype1": "sbbtype"})
			zap.L().Debug("maptables: renamed column sbbtype1 to sbbtype",
				zap.String("source", source))
		}
	}

	sbb := s.tables["SbbType"]
	if idx, ok := sbb.ColumnIndex("sbbcat_vervangbaarheid"); ok {
		for _, row := range sbb.Rows {
			v := table.KeyString(row[idx])
			if v != "" {
				row[idx] = v[:1]
			}
		}
	}
}

// asDateString formats a stored date as DDMMYYYY, the fixed exchange
// format of downstream exports. Unparseable or missing dates become the
// empty string.
func asDateString(v any) string {
	t, ok := asTime(v)
	if !ok {
		return ""
	}
	return t.Format("02012006")
}

var dateLayouts = []string{
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02",
}

func asTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return x, true
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, x); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	default:
		return asTime(fmt.Sprint(x))
	}
}
