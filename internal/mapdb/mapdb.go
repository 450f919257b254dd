// Package mapdb opens the per-project attribute databases and fetches
// their tables. Databases in the archive are routinely broken: password
// protected, truncated, or not databases at all. Open therefore returns a
// structured error value instead of failing the caller, so a batch scan
// over hundreds of projects records the fault and moves on.
package mapdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/dutchveg/dsmap/internal/table"
)

// DefaultDriver is the database/sql driver used when none is configured.
const DefaultDriver = "sqlite"

// systemPrefixes are table-name prefixes of driver or geodatabase
// bookkeeping tables, never map content.
var systemPrefixes = []string{"GDB_", "sqlite_"}

// OpenError describes why a project database could not be opened. It is a
// value, not an error return: unopenable databases are expected in the
// archive and must not abort a scan.
type OpenError struct {
	Path string
	Op   string // connect or query
	Msg  string
}

func (e *OpenError) String() string {
	return fmt.Sprintf("%s: %s: %s", e.Path, e.Op, e.Msg)
}

// Options configures how databases are opened.
type Options struct {
	// Driver is the database/sql driver name. Empty means DefaultDriver.
	Driver string
}

// Store is one opened project database.
type Store struct {
	db   *sql.DB
	path string
}

// Open connects to a project database and verifies the connection with a
// ping. Failures come back as an OpenError, never as a Go error: the
// caller decides whether a broken database is fatal.
func Open(ctx context.Context, path string, opts Options) (*Store, *OpenError) {
	driver := opts.Driver
	if driver == "" {
		driver = DefaultDriver
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, &OpenError{Path: path, Op: "connect", Msg: err.Error()}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close() // release the handle even on a failed ping
		return nil, &OpenError{Path: path, Op: "connect", Msg: err.Error()}
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file this store was opened from.
func (s *Store) Path() string {
	return s.path
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return eris.Wrapf(err, "mapdb: close %s", s.path)
	}
	return nil
}

// ListTables returns the content table names in sorted order, with driver
// and geodatabase bookkeeping tables filtered out.
func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`)
	if err != nil {
		return nil, eris.Wrapf(err, "mapdb: list tables in %s", s.path)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrapf(err, "mapdb: scan table name in %s", s.path)
		}
		if isSystemTable(name) {
			continue
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "mapdb: list tables in %s", s.path)
	}
	return names, nil
}

// FetchTable reads one table completely, preserving column order. Values
// come back as driver-native types with []byte normalized to string.
func (s *Store) FetchTable(ctx context.Context, name string) (*table.Table, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM %s`, quoteIdent(name)))
	if err != nil {
		return nil, eris.Wrapf(err, "mapdb: fetch table %s from %s", name, s.path)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, eris.Wrapf(err, "mapdb: columns of %s in %s", name, s.path)
	}

	tbl := table.New(name, columns)
	for rows.Next() {
		vals := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, eris.Wrapf(err, "mapdb: scan row of %s in %s", name, s.path)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		if err := tbl.Append(vals); err != nil {
			return nil, eris.Wrapf(err, "mapdb: table %s in %s", name, s.path)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "mapdb: fetch table %s from %s", name, s.path)
	}

	if tbl.Len() == 0 {
		zap.L().Debug("mapdb: empty table",
			zap.String("path", s.path), zap.String("table", name))
	}
	return tbl, nil
}

// FetchAll reads every content table.
func (s *Store) FetchAll(ctx context.Context) (map[string]*table.Table, error) {
	names, err := s.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*table.Table, len(names))
	for _, name := range names {
		tbl, err := s.FetchTable(ctx, name)
		if err != nil {
			return nil, err
		}
		out[name] = tbl
	}
	return out, nil
}

func isSystemTable(name string) bool {
	for _, p := range systemPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
