package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/albion-guild-ranking/config"
	"github.com/alem-hub/albion-guild-ranking/internal/application/command"
	"github.com/alem-hub/albion-guild-ranking/internal/application/query"
	"github.com/alem-hub/albion-guild-ranking/internal/domain/ranking"
	"github.com/alem-hub/albion-guild-ranking/internal/infrastructure/persistence/file"
	"github.com/alem-hub/albion-guild-ranking/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/albion-guild-ranking/internal/infrastructure/persistence/sqlite"
	"github.com/alem-hub/albion-guild-ranking/internal/infrastructure/service"
)

const guildMembers = `[
  {"Id": "p1", "Name": "Alice", "KillFame": 200,
   "LifetimeStatistics": {"PvE": {"Total": 100}, "Gathering": {"All": {"Total": 50}}, "Crafting": {"Total": 0}}},
  {"Id": "p2", "Name": "Bob", "KillFame": 50,
   "LifetimeStatistics": {"PvE": {"Total": 50}, "Gathering": {"All": {"Total": 50}}, "Crafting": {"Total": 50}}}
]`

func albionServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(guildMembers))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, albionURL string) *config.Config {
	t.Helper()
	return &config.Config{
		App: config.AppConfig{Name: "test", Environment: config.EnvDevelopment},
		Albion: config.AlbionConfig{
			GuildID:        "g1",
			BaseURL:        albionURL,
			RequestTimeout: 2 * time.Second,
			FetchTimeout:   5 * time.Second,
			CacheTTL:       time.Minute,
		},
		Scheduler: config.SchedulerConfig{CycleTimeout: 10 * time.Second},
		Ranking: config.RankingConfig{
			TopN:            10,
			DailyCategories: "total,pvp",
			DefaultCategory: "pvp",
			WeeklyWeekday:   time.Sunday,
			WeeklyCategory:  "total",
		},
		Store: config.StoreConfig{
			Kind:       config.StoreFile,
			Dir:        filepath.Join(t.TempDir(), "snapshots"),
			SQLitePath: filepath.Join(t.TempDir(), "nested", "ranking.db"),
			Namespace:  "g1",
		},
		Redis: config.RedisConfig{
			Host:        "localhost",
			Port:        6379,
			DialTimeout: time.Second,
		},
		Features: config.LoadFeatureFlags(),
	}
}

func useMiniredis(t *testing.T, cfg *config.Config) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	cfg.Redis.Host = mr.Host()
	cfg.Redis.Port = port
	cfg.Redis.Enabled = true
	return mr
}

func TestNew_FileStoreWithoutRedis(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.IsType(t, &file.SnapshotStore{}, a.Store)
	assert.IsType(t, &service.LogPublisher{}, a.Publisher)
	assert.Nil(t, a.Cache)
	assert.Nil(t, a.CachedProvider)
	assert.Nil(t, a.Telegram)
	assert.Same(t, a.Albion, a.Provider)
	assert.NotNil(t, a.DailyCycle)
	assert.NotNil(t, a.RankingQuery)
}

func TestNew_SQLiteStoreCreatesDirectory(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Store.Kind = config.StoreSQLite

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.IsType(t, &sqlite.SnapshotStore{}, a.Store)
	assert.NoError(t, a.Store.Ping(context.Background()))
}

func TestNew_RedisStoreAndCache(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Store.Kind = config.StoreRedis
	useMiniredis(t, cfg)

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.IsType(t, &redis.SnapshotStore{}, a.Store)
	require.NotNil(t, a.Cache)
	require.NotNil(t, a.CachedProvider)
	assert.Same(t, a.CachedProvider, a.Provider)
}

func TestNew_StatsCacheFlagOff(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	useMiniredis(t, cfg)
	require.NoError(t, cfg.Features.DisableFeature(config.FeatureStatsCache))

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.NotNil(t, a.Cache)
	assert.Nil(t, a.CachedProvider)
	assert.Same(t, a.Albion, a.Provider)
}

func TestNew_RedisStoreFailsWithoutRedis(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Store.Kind = config.StoreRedis
	cfg.Redis.Port = 1

	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestNew_OptionalRedisFailureIsTolerated(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Redis.Enabled = true
	cfg.Redis.Port = 1

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.Nil(t, a.Cache)
}

func TestApp_DailyCycleThenQueries(t *testing.T) {
	srv := albionServer(t)
	cfg := testConfig(t, srv.URL)
	useMiniredis(t, cfg)

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ctx := context.Background()
	now := time.Date(2024, 5, 1, 23, 0, 0, 0, time.UTC)

	res, err := a.DailyCycle.Handle(ctx, command.RunDailyCycleCommand{Now: now, Trigger: "test"})
	require.NoError(t, err)
	assert.False(t, res.Unavailable)
	assert.Equal(t, 2, res.Players)
	assert.Equal(t, []ranking.Category{ranking.CategoryTotal, ranking.CategoryPvP}, res.Published)

	baseline, err := a.Store.LoadDaily(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, baseline.Len())

	view, err := a.RankingQuery.Handle(ctx, query.GetRankingQuery{Mode: query.ModeCumulative})
	require.NoError(t, err)
	require.False(t, view.Unavailable)
	assert.Equal(t, ranking.CategoryPvP, view.Category)
	require.Len(t, view.Entries, 2)
	assert.Equal(t, "Alice", view.Entries[0].Name)

	weekly, err := a.RankingQuery.Handle(ctx, query.GetRankingQuery{Mode: query.ModeWeekly})
	require.NoError(t, err)
	assert.False(t, weekly.Unavailable)
}

func TestApp_DailyCycleBypassesStatsCache(t *testing.T) {
	var killFame atomic.Int64
	killFame.Store(200)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"Id": "p1", "Name": "Alice", "KillFame": ` + strconv.FormatInt(killFame.Load(), 10) + `}]`))
	}))
	t.Cleanup(srv.Close)

	cfg := testConfig(t, srv.URL)
	useMiniredis(t, cfg)

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	require.NotNil(t, a.CachedProvider)
	ctx := context.Background()

	// Warm the cache with the old totals.
	view, err := a.RankingQuery.Handle(ctx, query.GetRankingQuery{Mode: query.ModeCumulative})
	require.NoError(t, err)
	require.Len(t, view.Entries, 1)
	assert.EqualValues(t, 200, view.Entries[0].Value)

	killFame.Store(900)

	_, err = a.DailyCycle.Handle(ctx, command.RunDailyCycleCommand{Now: time.Date(2024, 5, 1, 23, 0, 0, 0, time.UTC)})
	require.NoError(t, err)

	baseline, err := a.Store.LoadDaily(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 900, baseline.Get("Alice").PvP)

	// The cycle neither read nor touched the cached entry.
	view, err = a.RankingQuery.Handle(ctx, query.GetRankingQuery{Mode: query.ModeCumulative})
	require.NoError(t, err)
	assert.EqualValues(t, 200, view.Entries[0].Value)
}
