package projects

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Overrides is the operator-maintained document resolving projects the
// automatic tiers cannot. Priority paths are the manual override tier;
// discard tags extend or replace the default denylist.
//
//	discard_tags: [oud, kopie]
//	priority:
//	  database:
//	    - Drenthe/Dr 0007_Hijken_1989/herzien.mdb
//	  polygon:
//	    - Drenthe/Dr 0007_Hijken_1989/kaart/vlakken_def.shp
type Overrides struct {
	DiscardTags []string            `yaml:"discard_tags"`
	Priority    map[string][]string `yaml:"priority"`
}

// LoadOverrides reads an overrides document. A missing file is a usage
// fault: the caller asked for overrides by path.
func LoadOverrides(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "projects: read overrides %s", path)
	}
	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, eris.Wrapf(err, "projects: parse overrides %s", path)
	}
	for role := range o.Priority {
		if _, err := ParseRole(role); err != nil {
			return nil, eris.Wrapf(err, "projects: overrides %s", path)
		}
	}
	return &o, nil
}

// PriorityFor returns the override paths for one role, resolved to absolute
// paths through the mapper.
func (o *Overrides) PriorityFor(role Role, mapper PathMapper) []string {
	if o == nil {
		return nil
	}
	rels := o.Priority[role.String()]
	abs := make([]string, 0, len(rels))
	for _, rel := range rels {
		abs = append(abs, mapper.Abs(rel))
	}
	return abs
}
