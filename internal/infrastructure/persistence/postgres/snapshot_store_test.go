package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/albion-guild-ranking/internal/domain/ranking"
)

// newTestStore connects to TEST_DATABASE_URL and scopes rows to a random guild.
func newTestStore(t *testing.T) *SnapshotStore {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := NewConnectionFromURL(ctx, url, DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	require.NoError(t, NewMigrator(conn).Migrate(ctx))

	return NewSnapshotStore(conn, "test-"+uuid.NewString())
}

func TestSnapshotStore_Postgres(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	baseline, err := store.LoadDaily(ctx)
	require.NoError(t, err)
	assert.True(t, baseline.IsEmpty())

	snapshots := []ranking.StatSnapshot{
		{Name: "Alice", PvP: 1 << 62, PvE: 100, Gathering: 50},
		{Name: "Bob", PvP: 50, PvE: 50, Gathering: 50, Crafting: 50},
	}
	require.NoError(t, store.SaveDaily(ctx, "2024-05-01", snapshots))
	require.NoError(t, store.SaveDaily(ctx, "2024-05-02", snapshots[1:]))

	baseline, err = store.LoadDaily(ctx)
	require.NoError(t, err)
	assert.Equal(t, ranking.Day("2024-05-02"), baseline.Day)
	assert.Equal(t, snapshots[1:], baseline.Snapshots(), "save overwrites, no merge")

	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for _, n := range []int{2, 3, 4, 5, 6, 7, 8, 1, 9} {
		require.NoError(t, store.AppendWeekly(ctx, ranking.DailyDelta{
			Day: ranking.DayOf(start.AddDate(0, 0, n-1)),
			Players: []ranking.StatSnapshot{
				{Name: "Zed", PvP: int64(n)},
				{Name: "Amy", PvP: int64(n)},
			},
		}))
	}

	history, err := store.LoadWeekly(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ranking.Day{
		"2024-05-03", "2024-05-04", "2024-05-05", "2024-05-06",
		"2024-05-07", "2024-05-08", "2024-05-09",
	}, history.Days())

	players, ok := history.Get("2024-05-09")
	require.True(t, ok)
	assert.Equal(t, "Zed", players[0].Name, "provider order is preserved")
}
