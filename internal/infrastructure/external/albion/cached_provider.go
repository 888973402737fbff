package albion

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alem-hub/albion-guild-ranking/internal/domain/ranking"
	rediscache "github.com/alem-hub/albion-guild-ranking/internal/infrastructure/persistence/redis"
)

// CachedProvider caches member statistics in Redis for a short TTL so that
// repeated chat commands do not hit the gameinfo API every time.
// Cache errors never fail the request: the upstream provider is used instead.
type CachedProvider struct {
	inner  ranking.StatsProvider
	cache  *rediscache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

var _ ranking.StatsProvider = (*CachedProvider)(nil)

// NewCachedProvider wraps inner. ttl <= 0 uses rediscache.TTLGuildStats.
func NewCachedProvider(inner ranking.StatsProvider, cache *rediscache.Cache, ttl time.Duration, logger *slog.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = rediscache.TTLGuildStats
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedProvider{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With("component", "albion_stats_cache"),
	}
}

// FetchGuildMemberStats returns cached statistics when fresh, otherwise
// fetches them and refreshes the cache. Failures are never cached.
func (p *CachedProvider) FetchGuildMemberStats(ctx context.Context, guildID string) ([]ranking.StatSnapshot, error) {
	key := rediscache.GuildStatsKey(guildID)

	var cached []ranking.StatSnapshot
	err := p.cache.GetJSON(ctx, key, &cached)
	switch {
	case err == nil && len(cached) > 0:
		p.logger.Debug("guild stats cache hit", "guild_id", guildID, "members", len(cached))
		return cached, nil
	case err != nil && !errors.Is(err, rediscache.ErrCacheMiss):
		p.logger.Warn("guild stats cache read failed", "guild_id", guildID, "error", err)
	}

	snapshots, err := p.inner.FetchGuildMemberStats(ctx, guildID)
	if err != nil {
		return nil, err
	}

	if err := p.cache.SetJSON(ctx, key, snapshots, p.ttl); err != nil {
		p.logger.Warn("guild stats cache write failed", "guild_id", guildID, "error", err)
	}

	return snapshots, nil
}

// Invalidate drops the cached statistics of a guild so the next fetch goes
// upstream.
func (p *CachedProvider) Invalidate(ctx context.Context, guildID string) error {
	return p.cache.Delete(ctx, rediscache.GuildStatsKey(guildID))
}
