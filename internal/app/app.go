// Package app wires configuration into the collaborators the bot and the
// worker share: snapshot store, stats provider, publisher, daily cycle and
// ranking query. Both binaries build one App and pass its handles around.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/alem-hub/albion-guild-ranking/config"
	"github.com/alem-hub/albion-guild-ranking/internal/application/command"
	"github.com/alem-hub/albion-guild-ranking/internal/application/query"
	"github.com/alem-hub/albion-guild-ranking/internal/domain/ranking"
	"github.com/alem-hub/albion-guild-ranking/internal/infrastructure/external/albion"
	"github.com/alem-hub/albion-guild-ranking/internal/infrastructure/external/telegram"
	"github.com/alem-hub/albion-guild-ranking/internal/infrastructure/persistence/file"
	"github.com/alem-hub/albion-guild-ranking/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/albion-guild-ranking/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/albion-guild-ranking/internal/infrastructure/persistence/sqlite"
	"github.com/alem-hub/albion-guild-ranking/internal/infrastructure/service"
	"github.com/alem-hub/albion-guild-ranking/internal/interface/telegram/presenter"
)

// Store is a SnapshotStore that can be health-checked.
type Store interface {
	ranking.SnapshotStore
	Ping(ctx context.Context) error
}

// App holds configuration and collaborator handles.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Store Store

	// Gate serializes the daily cycle's writes against query reads.
	Gate *sync.RWMutex

	// Albion is the raw gameinfo client; Provider may wrap it in a cache.
	Albion   *albion.Client
	Provider ranking.StatsProvider

	// CachedProvider is nil unless ranking.stats_cache is on and redis is up.
	CachedProvider *albion.CachedProvider

	// Cache is nil when redis is not configured.
	Cache *redis.Cache

	// Telegram is nil without a bot token.
	Telegram *telegram.Client

	Presenter    *presenter.RankingPresenter
	Publisher    ranking.Publisher
	DailyCycle   *command.DailyCycleHandler
	RankingQuery *query.GetRankingHandler

	closers []func() error
}

// New builds the App. On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{
		Config: cfg,
		Logger: logger,
		Gate:   &sync.RWMutex{},
	}
	if err := a.build(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg, logger := a.Config, a.Logger

	// ─────────────────────────────────────────────────────────────────────────
	// REDIS
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.UsesRedis() {
		if err := a.openRedis(); err != nil {
			if cfg.Store.Kind == config.StoreRedis {
				return err
			}
			logger.Warn("redis unavailable, cache and lock disabled", "error", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// SNAPSHOT STORE
	// ─────────────────────────────────────────────────────────────────────────
	if err := a.openStore(ctx); err != nil {
		return err
	}
	logger.Info("snapshot store ready", "kind", string(cfg.Store.Kind))

	// ─────────────────────────────────────────────────────────────────────────
	// EXTERNAL CLIENTS
	// ─────────────────────────────────────────────────────────────────────────
	albionCfg := albion.DefaultClientConfig(cfg.Albion.BaseURL)
	albionCfg.Timeout = cfg.Albion.RequestTimeout
	albionCfg.Logger = logger
	a.Albion = albion.NewClient(albionCfg)
	a.Provider = a.Albion

	if a.Cache != nil && cfg.Features.Enabled(config.FeatureStatsCache) {
		a.CachedProvider = albion.NewCachedProvider(a.Albion, a.Cache, cfg.Albion.CacheTTL, logger)
		a.Provider = a.CachedProvider
		logger.Info("guild stats cache enabled", "ttl", cfg.Albion.CacheTTL)
	}

	if cfg.Telegram.Token != "" {
		tgCfg := telegram.DefaultClientConfig(cfg.Telegram.Token)
		tgCfg.PollTimeout = cfg.Telegram.PollingTimeout
		tgCfg.Logger = logger
		a.Telegram = telegram.NewClient(tgCfg)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	a.Presenter = presenter.NewRankingPresenter(cfg.Features.Checker(config.FeatureDailyChart))

	if a.Telegram != nil && cfg.Telegram.ChannelID != 0 {
		a.Publisher = service.NewChatPublisher(a.Telegram, a.Presenter, cfg.Telegram.ChannelID, logger)
	} else {
		logger.Warn("no telegram channel configured, boards go to the log")
		a.Publisher = service.NewLogPublisher(a.Presenter, logger)
	}

	cycleCfg := command.DefaultDailyCycleConfig()
	cycleCfg.GuildID = cfg.Albion.GuildID
	cycleCfg.TopN = cfg.Ranking.TopN
	cycleCfg.DailyCategories = cfg.DailyCategories()
	cycleCfg.FetchTimeout = cfg.Albion.FetchTimeout
	cycleCfg.CycleTimeout = cfg.Scheduler.CycleTimeout
	cycleCfg.WeeklyPost = cfg.Features.Enabled(config.FeatureWeeklyPost)
	cycleCfg.WeeklyWeekday = cfg.Ranking.WeeklyWeekday
	cycleCfg.WeeklyCategory = cfg.WeeklyCategory()

	var opts []command.DailyCycleOption
	if a.Cache != nil && cfg.Features.Enabled(config.FeatureDistributedLock) {
		opts = append(opts, command.WithDistributedLock(a.Cache))
	}

	// The baseline always comes from the raw client, never from the cache.
	a.DailyCycle = command.NewDailyCycleHandler(a.Albion, a.Store, a.Publisher, a.Gate, cycleCfg, logger, opts...)

	a.RankingQuery = query.NewGetRankingHandler(a.Provider, a.Store, a.Gate, query.GetRankingConfig{
		GuildID:         cfg.Albion.GuildID,
		TopN:            cfg.Ranking.TopN,
		DefaultCategory: cfg.DefaultCategory(),
	}, logger)

	return nil
}

func (a *App) openRedis() error {
	rc := a.Config.Redis
	cacheCfg := redis.DefaultConfig()
	cacheCfg.Host = rc.Host
	cacheCfg.Port = rc.Port
	cacheCfg.Password = rc.Password
	cacheCfg.DB = rc.DB
	cacheCfg.PoolSize = rc.PoolSize
	cacheCfg.MinIdleConns = rc.MinIdleConns
	cacheCfg.DialTimeout = rc.DialTimeout
	cacheCfg.ReadTimeout = rc.ReadTimeout
	cacheCfg.WriteTimeout = rc.WriteTimeout

	cache, err := redis.NewCache(cacheCfg)
	if err != nil {
		return fmt.Errorf("connect to redis %s: %w", cacheCfg.Addr(), err)
	}

	a.Cache = cache
	a.closers = append(a.closers, cache.Close)
	a.Logger.Info("redis connection established", "addr", cacheCfg.Addr())
	return nil
}

func (a *App) openStore(ctx context.Context) error {
	sc := a.Config.Store

	switch sc.Kind {
	case config.StoreFile:
		store, err := file.NewSnapshotStore(sc.Dir)
		if err != nil {
			return err
		}
		a.Store = store

	case config.StoreSQLite:
		if err := os.MkdirAll(filepath.Dir(sc.SQLitePath), 0o755); err != nil {
			return fmt.Errorf("create sqlite dir: %w", err)
		}
		store, err := sqlite.Open(sc.SQLitePath)
		if err != nil {
			return err
		}
		a.Store = store
		a.closers = append(a.closers, store.Close)

	case config.StorePostgres:
		db := a.Config.Database
		poolCfg := postgres.DefaultConfig()
		poolCfg.MaxConns = int32(db.MaxConns)
		poolCfg.MinConns = int32(db.MinConns)
		poolCfg.MaxConnLifetime = db.ConnMaxLifetime
		poolCfg.MaxConnIdleTime = db.ConnMaxIdleTime

		conn, err := postgres.NewConnectionFromURL(ctx, db.URL, poolCfg)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error { conn.Close(); return nil })

		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		a.Store = postgres.NewSnapshotStore(conn, a.Config.Albion.GuildID)

	case config.StoreRedis:
		if a.Cache == nil {
			return errors.New("redis store selected but redis is not connected")
		}
		a.Store = redis.NewSnapshotStore(a.Cache, sc.Namespace)

	default:
		return fmt.Errorf("unknown snapshot store %q", sc.Kind)
	}

	return nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
