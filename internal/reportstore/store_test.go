package reportstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropmodel/dataset/internal/models"
)

// createTestStore opens a store in a temp dir and closes it with the test.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "runs", "runs.duckdb"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testReport(id string, started time.Time, valid bool) *models.DatasetReport {
	linked := true
	return &models.DatasetReport{
		RunID:      id,
		Root:       "/data/" + id,
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
		Counts:     map[models.Category]int{models.CategoryOutputTable: 2},
		Files: []models.FileResult{
			{
				Path:          "/data/a.csv",
				Category:      models.CategoryOutputTable,
				Series:        models.SeriesCM1,
				CanonicalName: "ACMO-US-MAIZE-0XXX-DSSAT.csv",
				Valid:         true,
				LinkageValid:  &linked,
				Warnings:      []string{"Suspected crop failure on line 4"},
			},
			{
				Path:     "/data/b.csv",
				Category: models.CategoryOutputTable,
				Valid:    false,
				Errors:   []string{"No header found"},
			},
		},
		Valid: valid,
	}
}

func TestSaveAndGetRun(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rep := testReport("run-1", start, false)

	require.NoError(t, store.SaveRun(ctx, rep))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, rep.RunID, got.RunID)
	assert.Equal(t, rep.Files[0].CanonicalName, got.Files[0].CanonicalName)
	assert.Equal(t, rep.Files[1].Errors, got.Files[1].Errors)
	require.NotNil(t, got.Files[0].LinkageValid)
	assert.True(t, *got.Files[0].LinkageValid)
	assert.True(t, rep.StartedAt.Equal(got.StartedAt))
}

func TestGetRun_NotFound(t *testing.T) {
	store := createTestStore(t)

	_, err := store.GetRun(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrRunNotFound))

	_, err = store.Diagnostics(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestListRuns(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveRun(ctx, testReport("old", base, true)))
	require.NoError(t, store.SaveRun(ctx, testReport("new", base.Add(time.Hour), false)))

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].RunID)
	assert.Equal(t, "old", runs[1].RunID)
	assert.True(t, runs[1].Valid)
	assert.Equal(t, 2, runs[0].Files)
	assert.Equal(t, "/data/new", runs[0].Root)

	limited, err := store.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "new", limited[0].RunID)
}

func TestListRuns_Empty(t *testing.T) {
	store := createTestStore(t)

	runs, err := store.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NotNil(t, runs)
}

func TestDiagnostics(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveRun(ctx, testReport("run-1", time.Now(), false)))

	diags, err := store.Diagnostics(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []Diagnostic{
		{Path: "/data/a.csv", Severity: SeverityWarning, Message: "Suspected crop failure on line 4"},
		{Path: "/data/b.csv", Severity: SeverityError, Message: "No header found"},
	}, diags)
}

func TestSaveRun_DuplicateID(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()
	rep := testReport("dup", time.Now(), true)

	require.NoError(t, store.SaveRun(ctx, rep))
	assert.Error(t, store.SaveRun(ctx, rep))
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.duckdb")
	store, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, store.SaveRun(context.Background(), testReport("kept", time.Now(), true)))
	require.NoError(t, store.Close())

	store, err = Open(path, nil)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.GetRun(context.Background(), "kept")
	assert.NoError(t, err)
}
