package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/albion-guild-ranking/internal/domain/ranking"
)

func newTestStore(t *testing.T) (*SnapshotStore, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "snapshots")
	store, err := NewSnapshotStore(dir)
	require.NoError(t, err)
	return store, dir
}

func TestSnapshotStore_ColdStart(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	baseline, err := store.LoadDaily(ctx)
	require.NoError(t, err)
	assert.True(t, baseline.IsEmpty())
	assert.True(t, baseline.Day.IsZero())

	history, err := store.LoadWeekly(ctx)
	require.NoError(t, err)
	assert.True(t, history.IsEmpty())
}

func TestSnapshotStore_DailyRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first := []ranking.StatSnapshot{
		{Name: "Alice", PvP: 200, PvE: 100, Gathering: 50},
		{Name: "Carol", Crafting: 9_223_372_036_854_775_807},
	}
	require.NoError(t, store.SaveDaily(ctx, "2024-05-01", first))

	baseline, err := store.LoadDaily(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, baseline.Snapshots())

	second := []ranking.StatSnapshot{{Name: "Bob", PvP: 1}}
	require.NoError(t, store.SaveDaily(ctx, "2024-05-02", second))

	baseline, err = store.LoadDaily(ctx)
	require.NoError(t, err)
	assert.Equal(t, ranking.Day("2024-05-02"), baseline.Day)
	assert.Equal(t, second, baseline.Snapshots(), "last write wins without merge")
}

func TestSnapshotStore_WeeklyRetentionAcrossReopen(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()

	for _, d := range []ranking.Day{
		"2024-05-04", "2024-05-02", "2024-05-08", "2024-05-03",
		"2024-05-05", "2024-05-07", "2024-05-06",
	} {
		require.NoError(t, store.AppendWeekly(ctx, ranking.DailyDelta{
			Day: d, Players: []ranking.StatSnapshot{{Name: "A", PvE: 1}},
		}))
	}

	// Reopen to make sure ordering survives the file round trip.
	reopened, err := NewSnapshotStore(dir)
	require.NoError(t, err)

	require.NoError(t, reopened.AppendWeekly(ctx, ranking.DailyDelta{
		Day: "2024-05-09", Players: []ranking.StatSnapshot{{Name: "A", PvE: 1}},
	}))

	history, err := reopened.LoadWeekly(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, history.Len())
	assert.Equal(t, ranking.Day("2024-05-03"), history.Days()[0])

	entries, ok := ranking.RankWeekly(history, ranking.CategoryPvE, 10)
	require.True(t, ok)
	assert.Equal(t, int64(7), entries[0].Value)
}

func TestSnapshotStore_CorruptFiles(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(dir, DailyFileName), []byte(`{"day":"2024-05-01","players":[`), 0o644))
	_, err := store.LoadDaily(ctx)
	assert.ErrorIs(t, err, ranking.ErrPersistenceCorrupt)

	require.NoError(t, os.WriteFile(filepath.Join(dir, DailyFileName), []byte(`{"day":"yesterday","players":[]}`), 0o644))
	_, err = store.LoadDaily(ctx)
	assert.ErrorIs(t, err, ranking.ErrPersistenceCorrupt)

	require.NoError(t, os.WriteFile(filepath.Join(dir, WeeklyFileName), []byte(`[]`), 0o644))
	_, err = store.LoadWeekly(ctx)
	assert.ErrorIs(t, err, ranking.ErrPersistenceCorrupt)

	err = store.AppendWeekly(ctx, ranking.DailyDelta{Day: "2024-05-01"})
	assert.ErrorIs(t, err, ranking.ErrPersistenceCorrupt)

	raw, err := os.ReadFile(filepath.Join(dir, WeeklyFileName))
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(raw), "corrupt history must not be overwritten")
}
