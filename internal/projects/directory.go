// Package projects discovers Digital Standard vegetation-mapping projects
// under a root directory and selects the authoritative attribute-database
// and shapefile per project from an unknown number of candidates.
//
// Projects live exactly two directory levels below the root: the first level
// is the region (historically a Dutch province), the second the project
// folder, e.g. root/Drenthe/"Dr 0007_Hijken_1989". A project can appear
// under more than one region, so the (region, project) pair is the unit of
// identity, never the project name alone.
package projects

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/rotisserie/eris"
)

// Key identifies one survey project.
type Key struct {
	Region  string
	Project string
}

// Record is one discovered project directory. Year is best-effort parsed
// from the folder name and empty when no plausible year is present.
type Record struct {
	Key  Key
	Year string
	Dir  string
}

// DiscoverOptions bounds the year token accepted from folder names.
// Zero values fall back to the 1960–2050 window of the source corpus.
type DiscoverOptions struct {
	YearMin int
	YearMax int
}

const (
	defaultYearMin = 1960
	defaultYearMax = 2050
)

var yearRe = regexp.MustCompile(`[12][0-9]{3}`)

// Discover walks exactly two levels below root and returns one Record per
// project directory, in directory-listing order. Entries that are not
// directories at either level are skipped; stray files at these levels are
// normal in historical archives. Fails when root does not exist or is not a
// directory.
func Discover(root string, opts DiscoverOptions) ([]Record, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, eris.Wrapf(err, "projects: stat root %s", root)
	}
	if !info.IsDir() {
		return nil, eris.Errorf("projects: %s is not a directory", root)
	}

	yearMin, yearMax := opts.YearMin, opts.YearMax
	if yearMin == 0 {
		yearMin = defaultYearMin
	}
	if yearMax == 0 {
		yearMax = defaultYearMax
	}

	regions, err := os.ReadDir(root)
	if err != nil {
		return nil, eris.Wrapf(err, "projects: read root %s", root)
	}

	var records []Record
	for _, region := range regions {
		if !region.IsDir() {
			continue
		}
		regionDir := filepath.Join(root, region.Name())
		entries, err := os.ReadDir(regionDir)
		if err != nil {
			return nil, eris.Wrapf(err, "projects: read region %s", regionDir)
		}
		for _, prj := range entries {
			if !prj.IsDir() {
				continue
			}
			records = append(records, Record{
				Key:  Key{Region: region.Name(), Project: prj.Name()},
				Year: YearFromName(prj.Name(), yearMin, yearMax),
				Dir:  filepath.Join(regionDir, prj.Name()),
			})
		}
	}
	return records, nil
}

// YearFromName extracts a plausible survey year from a folder name. Of all
// four-digit tokens starting with 1 or 2 that fall within [min, max], the
// last one wins; folder names routinely carry both the survey year and a
// later reprocessing year, and the later one is the authoritative revision.
// Returns the empty string when no token qualifies.
func YearFromName(name string, min, max int) string {
	var year string
	for _, tok := range yearRe.FindAllString(name, -1) {
		y, err := strconv.Atoi(tok)
		if err != nil {
			continue
		}
		if y >= min && y <= max {
			year = tok
		}
	}
	return year
}
