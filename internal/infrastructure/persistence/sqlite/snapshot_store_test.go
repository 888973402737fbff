package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/albion-guild-ranking/internal/domain/ranking"
)

func openTestStore(t *testing.T) (*SnapshotStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ranking.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func TestSnapshotStore_ColdStart(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	baseline, err := store.LoadDaily(ctx)
	require.NoError(t, err)
	assert.True(t, baseline.IsEmpty())

	history, err := store.LoadWeekly(ctx)
	require.NoError(t, err)
	assert.True(t, history.IsEmpty())
}

func TestSnapshotStore_DailyRoundTrip(t *testing.T) {
	store, path := openTestStore(t)
	ctx := context.Background()

	snapshots := []ranking.StatSnapshot{
		{Name: "Alice", PvP: 200, PvE: 100, Gathering: 50},
		{Name: "Bob", PvP: 50, PvE: 50, Gathering: 50, Crafting: 9_007_199_254_740_993},
	}
	require.NoError(t, store.SaveDaily(ctx, "2024-05-01", snapshots))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	baseline, err := reopened.LoadDaily(ctx)
	require.NoError(t, err)
	assert.Equal(t, ranking.Day("2024-05-01"), baseline.Day)
	assert.Equal(t, snapshots, baseline.Snapshots())
}

func TestSnapshotStore_WeeklyRetentionAndOverwrite(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	days := []ranking.Day{
		"2024-05-08", "2024-05-02", "2024-05-03", "2024-05-04",
		"2024-05-05", "2024-05-06", "2024-05-07", "2024-05-01",
	}
	for _, d := range days {
		require.NoError(t, store.AppendWeekly(ctx, ranking.DailyDelta{
			Day:     d,
			Players: []ranking.StatSnapshot{{Name: "Zed", Gathering: 2}, {Name: "Amy", Gathering: 2}},
		}))
	}
	// Rerun on the same date overwrites instead of double counting.
	require.NoError(t, store.AppendWeekly(ctx, ranking.DailyDelta{
		Day:     "2024-05-08",
		Players: []ranking.StatSnapshot{{Name: "Zed", Gathering: 5}, {Name: "Amy", Gathering: 5}},
	}))

	history, err := store.LoadWeekly(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, history.Len())
	assert.Equal(t, ranking.Day("2024-05-02"), history.Days()[0])

	entries, ok := ranking.RankWeekly(history, ranking.CategoryGathering, 10)
	require.True(t, ok)
	assert.Equal(t, []ranking.Entry{{Name: "Zed", Value: 17}, {Name: "Amy", Value: 17}}, entries)

	var rows int
	require.NoError(t, store.db.Get(&rows, `SELECT COUNT(*) FROM weekly_history`))
	assert.Equal(t, 14, rows)
}

func TestSnapshotStore_CorruptDay(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	_, err := store.db.Exec(`INSERT INTO store_meta (key, value) VALUES ('daily_day', 'not-a-date')`)
	require.NoError(t, err)
	_, err = store.LoadDaily(ctx)
	assert.ErrorIs(t, err, ranking.ErrPersistenceCorrupt)

	_, err = store.db.Exec(`INSERT INTO weekly_days (day) VALUES ('05/01/2024')`)
	require.NoError(t, err)
	_, err = store.LoadWeekly(ctx)
	assert.ErrorIs(t, err, ranking.ErrPersistenceCorrupt)
}
