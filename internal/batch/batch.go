// Package batch runs a full archive scan: discover projects, resolve the
// authoritative file per role, verify the selected files, and record
// everything in the audit store.
package batch

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dutchveg/dsmap/internal/config"
	"github.com/dutchveg/dsmap/internal/export"
	"github.com/dutchveg/dsmap/internal/mapdb"
	"github.com/dutchveg/dsmap/internal/projects"
	"github.com/dutchveg/dsmap/internal/shape"
	"github.com/dutchveg/dsmap/internal/store"
)

// Summary is the outcome of one scan.
type Summary struct {
	ScanID     string
	Projects   int
	Resolved   int
	Ambiguous  int
	Repairs    int
	OpenErrors int
	ReportPath string
}

// Scanner wires the scan pieces together.
type Scanner struct {
	cfg *config.Config
	st  *store.Store
}

// NewScanner returns a scanner. The store may be nil to skip auditing.
func NewScanner(cfg *config.Config, st *store.Store) *Scanner {
	return &Scanner{cfg: cfg, st: st}
}

// Run scans the archive under the configured root. Projects are verified
// concurrently; a broken database or geometry file is recorded and never
// aborts the scan.
func (s *Scanner) Run(ctx context.Context) (*Summary, error) {
	root := s.cfg.Projects.Root
	if root == "" {
		return nil, eris.New("batch: no archive root configured")
	}

	records, err := projects.Discover(root, projects.DiscoverOptions{
		YearMin: s.cfg.Projects.YearMin,
		YearMax: s.cfg.Projects.YearMax,
	})
	if err != nil {
		return nil, err
	}
	zap.L().Info("batch: discovered projects",
		zap.String("root", root), zap.Int("count", len(records)))

	var overrides *projects.Overrides
	if s.cfg.Projects.Overrides != "" {
		overrides, err = projects.LoadOverrides(s.cfg.Projects.Overrides)
		if err != nil {
			return nil, err
		}
	}

	discardTags := s.cfg.Resolver.DiscardTags
	if overrides != nil && len(overrides.DiscardTags) > 0 {
		discardTags = append(append([]string(nil), discardTags...), overrides.DiscardTags...)
	}
	resolver := projects.NewResolver(records, projects.ResolverOptions{
		DiscardTags: discardTags,
		AllowGuess:  s.cfg.Resolver.AllowGuess,
	})
	mapper := projects.NewPathMapper(root)

	rows, results, err := projects.BuildProjectFiles(records, resolver, overrides, mapper)
	if err != nil {
		return nil, err
	}

	sum := &Summary{Projects: len(records)}
	for _, r := range rows {
		if r.Resolved() {
			sum.Resolved++
		}
	}
	for _, res := range results {
		sum.Ambiguous += len(res.AmbiguousKeys())
	}

	if s.st != nil {
		sum.ScanID, err = s.st.CreateScan(ctx, root)
		if err != nil {
			return nil, err
		}
		if err := s.st.RecordSelections(ctx, sum.ScanID, rows); err != nil {
			return nil, err
		}
		if err := s.st.RecordAmbiguities(ctx, sum.ScanID, results); err != nil {
			return nil, err
		}
	}

	if err := s.verifyProjects(ctx, sum.ScanID, rows, sum); err != nil {
		return nil, err
	}

	if s.st != nil {
		if err := s.st.FinishScan(ctx, sum.ScanID, sum.Projects, sum.Resolved, sum.Ambiguous); err != nil {
			return nil, err
		}
	}

	reportPath := filepath.Join(s.cfg.Export.Dir, "projectfiles.xlsx")
	if err := export.WriteProjectReport(reportPath, rows, results, mapper); err != nil {
		return nil, err
	}
	sum.ReportPath = reportPath

	zap.L().Info("batch: scan complete",
		zap.String("scan_id", sum.ScanID),
		zap.Int("projects", sum.Projects),
		zap.Int("resolved", sum.Resolved),
		zap.Int("ambiguous", sum.Ambiguous),
		zap.Int("repairs", sum.Repairs),
		zap.Int("open_errors", sum.OpenErrors),
	)
	return sum, nil
}

// verifyProjects opens every selected file with a bounded worker pool and
// records repairs and open failures.
func (s *Scanner) verifyProjects(ctx context.Context, scanID string, rows []projects.ProjectFiles, sum *Summary) error {
	g, ctx := errgroup.WithContext(ctx)
	limit := s.cfg.Batch.MaxConcurrentProjects
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	var mu sync.Mutex
	for _, row := range rows {
		row := row
		g.Go(func() error {
			repairs, openErrs := s.verifyOne(ctx, scanID, row)

			mu.Lock()
			defer mu.Unlock()
			sum.Repairs += repairs
			sum.OpenErrors += openErrs
			return nil
		})
	}
	return g.Wait()
}

func (s *Scanner) verifyOne(ctx context.Context, scanID string, row projects.ProjectFiles) (repairs, openErrs int) {
	opts := shape.Options{
		FixPermissions: s.cfg.Shape.FixPermissions,
		SRID:           s.cfg.Shape.SRID,
	}

	for _, sel := range []projects.Selection{row.Polygon, row.Line, row.Point} {
		if sel.Path == "" {
			continue
		}
		_, entries, err := shape.Open(sel.Path, opts)
		if err != nil {
			zap.L().Error("batch: unreadable geometry file",
				zap.String("path", sel.Path), zap.Error(err))
			continue
		}
		repairs += len(entries)
		if s.st != nil && len(entries) > 0 {
			if err := s.st.RecordRepairs(ctx, scanID, sel.Path, entries); err != nil {
				zap.L().Error("batch: record repairs", zap.Error(err))
			}
		}
	}

	if row.Database.Path != "" {
		db, openErr := mapdb.Open(ctx, row.Database.Path, mapdb.Options{Driver: s.cfg.Mapdb.Driver})
		if openErr != nil {
			openErrs++
			zap.L().Warn("batch: unopenable database",
				zap.String("path", openErr.Path),
				zap.String("op", openErr.Op),
				zap.String("msg", openErr.Msg),
			)
			if s.st != nil {
				if err := s.st.RecordOpenError(ctx, scanID, openErr); err != nil {
					zap.L().Error("batch: record open error", zap.Error(err))
				}
			}
		} else {
			_ = db.Close()
		}
	}
	return repairs, openErrs
}
