package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setup(t testing.TB) *Store {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_RecordAndList(t *testing.T) {
	store := setup(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	for i, src := range []string{"wiki", "sheet", "wiki"} {
		err := store.Record(ctx, Run{
			ID:         string(rune('a' + i)),
			Source:     src,
			URL:        "https://example.com",
			Status:     StatusOK,
			Rows:       10 * (i + 1),
			Columns:    3,
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinishedAt: base.Add(time.Duration(i)*time.Minute + 5*time.Second),
		})
		require.NoError(t, err)
	}

	runs, err := store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "c", runs[0].ID)
	require.Equal(t, "b", runs[1].ID)
	require.Equal(t, "sheet", runs[1].Source)
	require.Equal(t, 5*time.Second, runs[0].Duration())
	require.True(t, runs[0].StartedAt.Equal(base.Add(2*time.Minute)))

	all, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestStore_RecordUpdatesExistingRun(t *testing.T) {
	store := setup(t)
	ctx := context.Background()
	now := time.Now()

	run := Run{ID: "r1", Source: "sheet", URL: "u", Status: "RUNNING", StartedAt: now, FinishedAt: now}
	require.NoError(t, store.Record(ctx, run))

	run.Status = "NO_DATA_CAPTURED"
	run.Error = "no matching response"
	run.FinishedAt = now.Add(10 * time.Second)
	require.NoError(t, store.Record(ctx, run))

	runs, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, "NO_DATA_CAPTURED", runs[0].Status)
	require.Equal(t, "no matching response", runs[0].Error)
}

func TestOpen_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Record(context.Background(), Run{
		ID: "x", Source: "wiki", URL: "u", Status: StatusOK, StartedAt: time.Now(), FinishedAt: time.Now(),
	}))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	runs, err := reopened.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
}
