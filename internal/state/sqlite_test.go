package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/jointab/internal/testutil"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(":memory:"))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_OpenMigrates(t *testing.T) {
	store := setupTestStore(t)

	version, err := store.GetMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	for _, table := range []string{"runs", "step_stats"} {
		rows, err := store.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		require.NoError(t, err, "table %s", table)
		_ = rows.Close()
	}
}

func TestSQLiteStore_FileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".jointab", "state.db")

	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(path))
	run, err := store.CreateRun(context.Background(), "pipeline.yaml")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened := NewSQLiteStore(nil)
	require.NoError(t, reopened.Open(path), "reopening skips applied migrations")
	defer func() { _ = reopened.Close() }()
	got, err := reopened.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, "pipeline.yaml", got.Pipeline)
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)
	ctx := context.Background()

	_, err := store.CreateRun(ctx, "p")
	assert.ErrorContains(t, err, "database not opened")
	_, err = store.ListRuns(ctx, 1)
	assert.ErrorContains(t, err, "database not opened")
	assert.ErrorContains(t, store.RecordStep(ctx, StepStat{}), "database not opened")
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	tests := []struct {
		name       string
		status     RunStatus
		errMsg     string
		wantErrMsg string
	}{
		{name: "completed", status: RunStatusCompleted},
		{name: "failed with message", status: RunStatusFailed, errMsg: "boom", wantErrMsg: "boom"},
		{name: "cancelled", status: RunStatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupTestStore(t)
			ctx := context.Background()

			run, err := store.CreateRun(ctx, "flows/main.yaml")
			require.NoError(t, err)
			assert.Equal(t, RunStatusRunning, run.Status)
			assert.Len(t, run.ID, 36)

			got, err := store.GetRun(ctx, run.ID)
			require.NoError(t, err)
			assert.Nil(t, got.CompletedAt)
			assert.Zero(t, got.Duration())
			assert.WithinDuration(t, run.StartedAt, got.StartedAt, time.Microsecond)

			require.NoError(t, store.CompleteRun(ctx, run.ID, tt.status, tt.errMsg))

			got, err = store.GetRun(ctx, run.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.wantErrMsg, got.Error)
			require.NotNil(t, got.CompletedAt)
			assert.GreaterOrEqual(t, got.Duration(), time.Duration(0))
		})
	}
}

func TestSQLiteStore_RunNotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.GetRun(ctx, "nope")
	assert.ErrorContains(t, err, "run not found")
	assert.ErrorContains(t, store.CompleteRun(ctx, "nope", RunStatusCompleted, ""), "run not found")
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var ids []string
	for range 3 {
		run, err := store.CreateRun(ctx, "p.yaml")
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	runs, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID, "newest first")
	assert.Equal(t, ids[1], runs[1].ID)

	all, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSQLiteStore_StepStats(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	run, err := store.CreateRun(ctx, "p.yaml")
	require.NoError(t, err)

	first := StepStat{
		RunID: run.ID, Step: "orders_customers", JoinType: "left",
		LeftKeys: []string{"customer_id"}, RightKeys: []string{"id"},
		LeftRows: 4, RightRows: 3, OutputRows: 5, MatchedPairs: 4,
		UnmatchedLeft: 1, DistinctKeys: 3, MaxFanout: 2,
		Duration: 1500 * time.Millisecond,
	}
	second := StepStat{RunID: run.ID, Step: "with_regions", JoinType: "inner"}

	require.NoError(t, store.RecordStep(ctx, first))
	require.NoError(t, store.RecordStep(ctx, second))

	stats, err := store.GetStepStats(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	got := stats[0]
	assert.Equal(t, "orders_customers", got.Step)
	assert.Equal(t, []string{"customer_id"}, got.LeftKeys)
	assert.Equal(t, []string{"id"}, got.RightKeys)
	assert.Equal(t, 5, got.OutputRows)
	assert.Equal(t, 1, got.UnmatchedLeft)
	assert.Equal(t, 2, got.MaxFanout)
	assert.Equal(t, 1500*time.Millisecond, got.Duration)
	assert.InDelta(t, 1.25, got.Growth(), 1e-9)
	assert.False(t, got.RecordedAt.IsZero())

	assert.Equal(t, "with_regions", stats[1].Step)
	assert.Empty(t, stats[1].LeftKeys)
	assert.Zero(t, stats[1].Growth())

	none, err := store.GetStepStats(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteStore_StepRequiresRun(t *testing.T) {
	store := setupTestStore(t)
	err := store.RecordStep(context.Background(), StepStat{RunID: "missing", Step: "s", JoinType: "inner"})
	assert.ErrorContains(t, err, "failed to record step")
}
