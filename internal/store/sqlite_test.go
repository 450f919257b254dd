package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dutchveg/dsmap/internal/mapdb"
	"github.com/dutchveg/dsmap/internal/projects"
	"github.com/dutchveg/dsmap/internal/shape"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestScanLifecycle(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	id, err := s.CreateScan(ctx, "/archive")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	key := projects.Key{Region: "Dr", Project: "Dr 0007_Hijken_1989"}
	rows := []projects.ProjectFiles{{
		Record:   projects.Record{Key: key, Year: "1989", Dir: "/archive/Dr/Dr 0007_Hijken_1989"},
		Database: projects.Selection{Key: key, Path: "/archive/Dr/Dr 0007_Hijken_1989/data.mdb", Tier: "trivial"},
		Polygon:  projects.Selection{Key: key, Path: "/archive/Dr/Dr 0007_Hijken_1989/vlakken.shp", Tier: "canonical"},
	}}
	require.NoError(t, s.RecordSelections(ctx, id, rows))

	results := map[projects.Role]*projects.Result{
		projects.RolePoint: {Ambiguous: []projects.Candidate{
			{Key: key, Name: "a.shp", Path: "/archive/a.shp"},
			{Key: key, Name: "b.shp", Path: "/archive/b.shp"},
		}},
	}
	require.NoError(t, s.RecordAmbiguities(ctx, id, results))

	require.NoError(t, s.RecordRepairs(ctx, id, "/archive/vlakken.shp", []shape.RepairEntry{
		{FID: 3, Err: "geometry is null", Resolution: "dropped record with fid=3", DroppedFeature: true},
	}))
	require.NoError(t, s.RecordOpenError(ctx, id, &mapdb.OpenError{
		Path: "/archive/bad.mdb", Op: "connect", Msg: "file is not a database",
	}))

	require.NoError(t, s.FinishScan(ctx, id, 1, 1, 1))

	scans, err := s.ListScans(ctx, 10)
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, id, scans[0].ID)
	assert.Equal(t, "done", scans[0].Status)
	assert.Equal(t, 1, scans[0].Projects)
	assert.True(t, scans[0].FinishedAt.Valid)
}

func TestFinishUnknownScan(t *testing.T) {
	s := testStore(t)
	err := s.FinishScan(context.Background(), "nope", 0, 0, 0)
	assert.Error(t, err)
}
