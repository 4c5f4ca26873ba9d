package runlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_StartAndFinish(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	id := uuid.NewString()
	started := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, store.RecordStart(ctx, id, started, 4))
	require.NoError(t, store.RecordFinish(ctx, Run{
		ID:                id,
		FinishedAt:        started.Add(90 * time.Second),
		Status:            StatusCompleted,
		FilesTotal:        4,
		FilesProcessed:    3,
		FilesFailed:       1,
		InvoicesUpdated:   1,
		InvoicesAppended:  2,
		LineItemsAppended: 7,
	}))

	runs, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.Equal(t, StatusCompleted, runs[0].Status)
	assert.Equal(t, 3, runs[0].FilesProcessed)
	assert.Equal(t, 7, runs[0].LineItemsAppended)
}

func TestStore_FinishUnknownRun(t *testing.T) {
	store := openTestStore(t)

	err := store.RecordFinish(context.Background(), Run{
		ID:         "never-started",
		FinishedAt: time.Now(),
		Status:     StatusFailed,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "never started")
}

func TestStore_RecentOrderAndLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	ids := []string{uuid.NewString(), uuid.NewString(), uuid.NewString()}
	for i, id := range ids {
		require.NoError(t, store.RecordStart(ctx, id, base.Add(time.Duration(i)*time.Minute), 1))
	}

	runs, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID, "newest run first")
	assert.Equal(t, ids[1], runs[1].ID)
}

func TestStore_RunningStatusUntilFinished(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	id := uuid.NewString()

	require.NoError(t, store.RecordStart(ctx, id, time.Now().UTC(), 2))

	runs, err := store.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StatusRunning, runs[0].Status)
}
