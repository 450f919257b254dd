// Package store persists scan results: which file was selected for each
// project and role, which candidate sets stayed ambiguous, and what the
// geometry reader had to repair. One scan row ties a batch together.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/dutchveg/dsmap/internal/mapdb"
	"github.com/dutchveg/dsmap/internal/projects"
	"github.com/dutchveg/dsmap/internal/shape"
)

// Scan is one recorded batch run.
type Scan struct {
	ID         string
	Root       string
	Status     string
	Projects   int
	Resolved   int
	Ambiguous  int
	StartedAt  time.Time
	FinishedAt sql.NullTime
}

// Store wraps the audit database.
type Store struct {
	db *sql.DB
}

// Open opens the audit database at the given path and configures WAL mode.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "store: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "store: exec %s", pragma)
		}
	}
	return &Store{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS scans (
	id          TEXT PRIMARY KEY,
	root        TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	projects    INTEGER NOT NULL DEFAULT 0,
	resolved    INTEGER NOT NULL DEFAULT 0,
	ambiguous   INTEGER NOT NULL DEFAULT 0,
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS selections (
	id      TEXT PRIMARY KEY,
	scan_id TEXT NOT NULL REFERENCES scans(id),
	region  TEXT NOT NULL,
	project TEXT NOT NULL,
	role    TEXT NOT NULL,
	path    TEXT NOT NULL,
	tier    TEXT NOT NULL,
	guessed INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS ambiguities (
	id      TEXT PRIMARY KEY,
	scan_id TEXT NOT NULL REFERENCES scans(id),
	region  TEXT NOT NULL,
	project TEXT NOT NULL,
	role    TEXT NOT NULL,
	path    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS repairs (
	id         TEXT PRIMARY KEY,
	scan_id    TEXT NOT NULL REFERENCES scans(id),
	path       TEXT NOT NULL,
	fid        INTEGER NOT NULL,
	error      TEXT NOT NULL,
	resolution TEXT NOT NULL,
	dropped    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS open_errors (
	id      TEXT PRIMARY KEY,
	scan_id TEXT NOT NULL REFERENCES scans(id),
	path    TEXT NOT NULL,
	op      TEXT NOT NULL,
	msg     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_selections_scan_id ON selections(scan_id);
CREATE INDEX IF NOT EXISTS idx_ambiguities_scan_id ON ambiguities(scan_id);
CREATE INDEX IF NOT EXISTS idx_repairs_scan_id ON repairs(scan_id);
CREATE INDEX IF NOT EXISTS idx_open_errors_scan_id ON open_errors(scan_id);
`

// Migrate creates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "store: migrate")
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateScan records the start of a batch run and returns its id.
func (s *Store) CreateScan(ctx context.Context, root string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scans (id, root, status, started_at) VALUES (?, ?, 'running', ?)`,
		id, root, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "store: insert scan")
	}
	return id, nil
}

// FinishScan records the outcome counts of a batch run.
func (s *Store) FinishScan(ctx context.Context, scanID string, nProjects, nResolved, nAmbiguous int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scans SET status = 'done', projects = ?, resolved = ?, ambiguous = ?, finished_at = ? WHERE id = ?`,
		nProjects, nResolved, nAmbiguous, time.Now().UTC(), scanID,
	)
	if err != nil {
		return eris.Wrapf(err, "store: finish scan %s", scanID)
	}
	return checkRowsAffected(res, "scan", scanID)
}

// RecordSelections writes the resolved role selections of a scan.
func (s *Store) RecordSelections(ctx context.Context, scanID string, rows []projects.ProjectFiles) error {
	stmt, err := s.db.PrepareContext(ctx,
		`INSERT INTO selections (id, scan_id, region, project, role, path, tier, guessed) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "store: prepare selections")
	}
	defer stmt.Close()

	for _, r := range rows {
		sels := map[projects.Role]projects.Selection{
			projects.RoleDatabase: r.Database,
			projects.RolePolygon:  r.Polygon,
			projects.RoleLine:     r.Line,
			projects.RolePoint:    r.Point,
		}
		for role, sel := range sels {
			if sel.Path == "" {
				continue
			}
			_, err := stmt.ExecContext(ctx,
				uuid.New().String(), scanID,
				r.Record.Key.Region, r.Record.Key.Project,
				role.String(), sel.Path, sel.Tier, sel.Guessed,
			)
			if err != nil {
				return eris.Wrapf(err, "store: insert selection for %s", r.Record.Key.Project)
			}
		}
	}
	return nil
}

// RecordAmbiguities writes the unresolved candidate sets of a scan.
func (s *Store) RecordAmbiguities(ctx context.Context, scanID string, results map[projects.Role]*projects.Result) error {
	stmt, err := s.db.PrepareContext(ctx,
		`INSERT INTO ambiguities (id, scan_id, region, project, role, path) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "store: prepare ambiguities")
	}
	defer stmt.Close()

	for role, res := range results {
		for _, c := range res.Ambiguous {
			_, err := stmt.ExecContext(ctx,
				uuid.New().String(), scanID,
				c.Key.Region, c.Key.Project, role.String(), c.Path,
			)
			if err != nil {
				return eris.Wrapf(err, "store: insert ambiguity for %s", c.Key.Project)
			}
		}
	}
	return nil
}

// RecordRepairs writes the repair log of one geometry file read.
func (s *Store) RecordRepairs(ctx context.Context, scanID, path string, entries []shape.RepairEntry) error {
	stmt, err := s.db.PrepareContext(ctx,
		`INSERT INTO repairs (id, scan_id, path, fid, error, resolution, dropped) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "store: prepare repairs")
	}
	defer stmt.Close()

	for _, e := range entries {
		_, err := stmt.ExecContext(ctx,
			uuid.New().String(), scanID, path, e.FID, e.Err, e.Resolution, e.DroppedFeature,
		)
		if err != nil {
			return eris.Wrapf(err, "store: insert repair for %s", path)
		}
	}
	return nil
}

// RecordOpenError writes one unopenable-database event.
func (s *Store) RecordOpenError(ctx context.Context, scanID string, e *mapdb.OpenError) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO open_errors (id, scan_id, path, op, msg) VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), scanID, e.Path, e.Op, e.Msg,
	)
	return eris.Wrapf(err, "store: insert open error for %s", e.Path)
}

// ListScans returns recent scans, newest first.
func (s *Store) ListScans(ctx context.Context, limit int) ([]Scan, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, root, status, projects, resolved, ambiguous, started_at, finished_at
		 FROM scans ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "store: list scans")
	}
	defer rows.Close()

	var scans []Scan
	for rows.Next() {
		var sc Scan
		if err := rows.Scan(&sc.ID, &sc.Root, &sc.Status, &sc.Projects, &sc.Resolved,
			&sc.Ambiguous, &sc.StartedAt, &sc.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan row")
		}
		scans = append(scans, sc)
	}
	return scans, eris.Wrap(rows.Err(), "store: list scans iterate")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
