package batch

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/dutchveg/dsmap/internal/config"
	"github.com/dutchveg/dsmap/internal/shape"
	"github.com/dutchveg/dsmap/internal/store"
)

func archiveFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	prj := filepath.Join(root, "Drenthe", "Dr 0007_Hijken_1989")
	require.NoError(t, os.MkdirAll(prj, 0o755))

	ring := geom.NewLinearRingFlat(geom.XY, []float64{0, 0, 100, 0, 100, 100, 0, 100, 0, 0})
	poly := geom.NewPolygon(geom.XY)
	require.NoError(t, poly.Push(ring))
	mp := geom.NewMultiPolygon(geom.XY)
	require.NoError(t, mp.Push(poly))
	require.NoError(t, shape.Write(filepath.Join(prj, "vlakken.shp"),
		[]string{"ElmID"}, [][]any{{int64(101)}}, []geom.T{mp}))

	db, err := sql.Open("sqlite", filepath.Join(prj, "data.mdb"))
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`CREATE TABLE Element (Intern_ID TEXT, ElmID INTEGER)`)
	require.NoError(t, err)

	return root
}

func testConfig(root, exportDir string) *config.Config {
	return &config.Config{
		Projects: config.ProjectsConfig{Root: root},
		Shape:    config.ShapeConfig{FixPermissions: true},
		Mapdb:    config.MapdbConfig{Driver: "sqlite"},
		Export:   config.ExportConfig{Dir: exportDir},
		Batch:    config.BatchConfig{MaxConcurrentProjects: 2},
	}
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	root := archiveFixture(t)
	exportDir := t.TempDir()

	st, err := store.Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(ctx))

	sum, err := NewScanner(testConfig(root, exportDir), st).Run(ctx)
	require.NoError(t, err)

	assert.NotEmpty(t, sum.ScanID)
	assert.Equal(t, 1, sum.Projects)
	assert.Equal(t, 1, sum.Resolved)
	assert.Equal(t, 0, sum.Ambiguous)
	assert.Equal(t, 0, sum.Repairs)
	assert.Equal(t, 0, sum.OpenErrors)

	_, err = os.Stat(sum.ReportPath)
	assert.NoError(t, err, "project files report is written")

	scans, err := st.ListScans(ctx, 10)
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, "done", scans[0].Status)
	assert.Equal(t, 1, scans[0].Projects)
}

func TestRunWithoutStore(t *testing.T) {
	root := archiveFixture(t)
	sum, err := NewScanner(testConfig(root, t.TempDir()), nil).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sum.ScanID)
	assert.Equal(t, 1, sum.Resolved)
}

func TestRunNoRoot(t *testing.T) {
	_, err := NewScanner(testConfig("", t.TempDir()), nil).Run(context.Background())
	assert.Error(t, err)
}
