package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alem-hub/albion-guild-ranking/internal/domain/ranking"
)

// ══════════════════════════════════════════════════════════════════════════════
// WARM STATS CACHE JOB
// ══════════════════════════════════════════════════════════════════════════════

// WarmStatsCacheJobName is the scheduler name of the job.
const WarmStatsCacheJobName = "warm_stats_cache"

// CachedStatsProvider is a stats provider whose cache entry can be dropped.
type CachedStatsProvider interface {
	ranking.StatsProvider
	Invalidate(ctx context.Context, guildID string) error
}

// WarmStatsCacheJob refreshes the cached guild roster so chat commands
// rarely wait on the game API.
type WarmStatsCacheJob struct {
	provider CachedStatsProvider
	guildID  string
	logger   *slog.Logger
}

// NewWarmStatsCacheJob creates a new cache warming job.
func NewWarmStatsCacheJob(provider CachedStatsProvider, guildID string, logger *slog.Logger) *WarmStatsCacheJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &WarmStatsCacheJob{
		provider: provider,
		guildID:  guildID,
		logger:   logger.With("job", WarmStatsCacheJobName),
	}
}

// Name returns the job name.
func (j *WarmStatsCacheJob) Name() string {
	return WarmStatsCacheJobName
}

// Description returns a human-readable description.
func (j *WarmStatsCacheJob) Description() string {
	return "Refreshes the cached guild member statistics"
}

// Run drops the cached roster and fetches a fresh one.
func (j *WarmStatsCacheJob) Run(ctx context.Context) error {
	if err := j.provider.Invalidate(ctx, j.guildID); err != nil {
		j.logger.Warn("failed to invalidate stats cache", "error", err)
	}

	snapshots, err := j.provider.FetchGuildMemberStats(ctx, j.guildID)
	if err != nil {
		return fmt.Errorf("warm stats cache: %w", err)
	}

	j.logger.Debug("stats cache refreshed", "players", len(snapshots))
	return nil
}
