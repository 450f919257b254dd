package projects

import (
	"sort"

	"github.com/rotisserie/eris"
)

// Role is one of the four authoritative files resolved per project.
type Role int

const (
	RoleDatabase Role = iota
	RolePolygon
	RoleLine
	RolePoint
)

// roleSpec holds the per-role matching configuration: the canonical
// filename used as the strongest signal, the looser keyword for renamed
// files, the output column prefix, and the candidate file extension.
// Looked up once per resolution instead of branched on role strings.
type roleSpec struct {
	name      string
	ext       string
	canonical string // exact filename match, case-insensitive
	keyword   string // contains-match fallback, case-insensitive
	prefix    string // output column prefix
}

var roleSpecs = map[Role]roleSpec{
	RoleDatabase: {name: "database", ext: ".mdb", prefix: "mdb"},
	RolePolygon:  {name: "polygon", ext: ".shp", canonical: "vlakken.shp", keyword: "vlak", prefix: "poly"},
	RoleLine:     {name: "line", ext: ".shp", canonical: "lijnen.shp", keyword: "lijn", prefix: "line"},
	RolePoint:    {name: "point", ext: ".shp", canonical: "punten.shp", keyword: "punt", prefix: "point"},
}

// GeometryRoles lists the shapefile roles in resolution order.
var GeometryRoles = []Role{RolePolygon, RoleLine, RolePoint}

func (r Role) String() string {
	if spec, ok := roleSpecs[r]; ok {
		return spec.name
	}
	return "unknown"
}

// Ext returns the candidate file extension for the role.
func (r Role) Ext() string { return roleSpecs[r].ext }

// Prefix returns the output column prefix for the role.
func (r Role) Prefix() string { return roleSpecs[r].prefix }

// ParseRole converts a role token to a Role. Unknown tokens are a usage
// fault and fail immediately.
func ParseRole(s string) (Role, error) {
	for r, spec := range roleSpecs {
		if spec.name == s {
			return r, nil
		}
	}
	return 0, eris.Errorf("projects: %q is not a valid role (database, polygon, line, point)", s)
}

// RoleNames returns all role tokens, sorted.
func RoleNames() []string {
	names := make([]string, 0, len(roleSpecs))
	for _, spec := range roleSpecs {
		names = append(names, spec.name)
	}
	sort.Strings(names)
	return names
}

// DefaultDiscardTags are path substrings marking attribute-database copies
// that are known to be superseded exports, backups or conversion artifacts.
// Matching is case-insensitive on the full path.
var DefaultDiscardTags = []string{
	"conversion", "conversionpgb", "catl", "ctl", "soorten",
	"kopie", "test", "kievit", "oud", "oude", "db1", "fout",
	"themas", "florakartering", "flora", "toestand", "backup",
	"foutmelding", "geodatabase",
}
