package projects

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Candidate is one file found beneath a project directory. Candidates are
// transient: they are rebuilt for every resolution call and never persisted.
type Candidate struct {
	Key  Key
	Name string
	Path string
}

// ListFiles recursively lists all files beneath each project directory whose
// name ends with ext (case-sensitive literal suffix, e.g. ".mdb"). An empty
// ext lists every file. Output is grouped by project in the order the
// records are given; within a project the order is traversal order, which
// callers must not rely on beyond display.
//
// Projects with no matching files contribute no rows; absence from the
// output means "zero candidates", which downstream code distinguishes from
// "ambiguous".
func ListFiles(records []Record, ext string) ([]Candidate, error) {
	var out []Candidate
	for _, rec := range records {
		err := filepath.WalkDir(rec.Dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if ext != "" && !strings.HasSuffix(d.Name(), ext) {
				return nil
			}
			out = append(out, Candidate{Key: rec.Key, Name: d.Name(), Path: path})
			return nil
		})
		if err != nil {
			return nil, eris.Wrapf(err, "projects: walk %s", rec.Dir)
		}
	}
	return out, nil
}

// Counts aggregates candidates per project. With fillMissing, every known
// project key appears in the result, so "zero files found" is reported
// explicitly rather than by absence.
func Counts(candidates []Candidate, records []Record, fillMissing bool) map[Key]int {
	counts := make(map[Key]int)
	if fillMissing {
		for _, rec := range records {
			counts[rec.Key] = 0
		}
	}
	for _, c := range candidates {
		counts[c.Key]++
	}
	return counts
}
