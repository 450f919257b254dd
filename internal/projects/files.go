package projects

import (
	"github.com/rotisserie/eris"
)

// ProjectFiles is the merged per-project row: the authoritative file of each
// role, or empty when the role was unresolved (ambiguous or absent).
type ProjectFiles struct {
	Record   Record
	Database Selection
	Polygon  Selection
	Line     Selection
	Point    Selection
}

// Resolved reports whether any role was resolved for this project.
func (p ProjectFiles) Resolved() bool {
	return p.Database.Path != "" || p.Polygon.Path != "" || p.Line.Path != "" || p.Point.Path != ""
}

// BuildProjectFiles lists candidates for every role, resolves each role
// independently and merges the selections into one row per project, in
// discovery order. The per-role ambiguous sets are returned untouched for
// reporting.
func BuildProjectFiles(records []Record, resolver *Resolver, overrides *Overrides, mapper PathMapper) ([]ProjectFiles, map[Role]*Result, error) {
	mdbCands, err := ListFiles(records, RoleDatabase.Ext())
	if err != nil {
		return nil, nil, err
	}
	shpCands, err := ListFiles(records, RolePolygon.Ext())
	if err != nil {
		return nil, nil, err
	}

	results := make(map[Role]*Result, 4)
	res, err := resolver.Resolve(RoleDatabase, mdbCands, overrides.PriorityFor(RoleDatabase, mapper))
	if err != nil {
		return nil, nil, eris.Wrap(err, "projects: resolve database role")
	}
	results[RoleDatabase] = res

	for _, role := range GeometryRoles {
		res, err := resolver.Resolve(role, shpCands, overrides.PriorityFor(role, mapper))
		if err != nil {
			return nil, nil, eris.Wrapf(err, "projects: resolve %s role", role)
		}
		results[role] = res
	}

	rows := make([]ProjectFiles, 0, len(records))
	for _, rec := range records {
		rows = append(rows, ProjectFiles{
			Record:   rec,
			Database: results[RoleDatabase].Selected[rec.Key],
			Polygon:  results[RolePolygon].Selected[rec.Key],
			Line:     results[RoleLine].Selected[rec.Key],
			Point:    results[RolePoint].Selected[rec.Key],
		})
	}
	return rows, results, nil
}
