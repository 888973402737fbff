// Package jobs contains implementations of scheduled jobs for the ranking bot.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alem-hub/albion-guild-ranking/internal/application/command"
	"github.com/alem-hub/albion-guild-ranking/internal/domain/ranking"
)

// ══════════════════════════════════════════════════════════════════════════════
// DAILY RANKING JOB
// ══════════════════════════════════════════════════════════════════════════════

// DailyRankingJobName is the scheduler name of the job.
const DailyRankingJobName = "daily_ranking"

// DailyCycleRunner runs one daily cycle.
type DailyCycleRunner interface {
	Handle(ctx context.Context, cmd command.RunDailyCycleCommand) (*command.DailyCycleResult, error)
}

// DailyRankingJob posts the daily ranking and advances the baseline.
// It is a thin adapter: all cycle logic lives in command.DailyCycleHandler.
type DailyRankingJob struct {
	runner DailyCycleRunner
	logger *slog.Logger
	now    func() time.Time

	lastResult atomic.Pointer[command.DailyCycleResult]
}

// NewDailyRankingJob creates a new daily ranking job.
func NewDailyRankingJob(runner DailyCycleRunner, logger *slog.Logger) *DailyRankingJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &DailyRankingJob{
		runner: runner,
		logger: logger.With("job", DailyRankingJobName),
		now:    time.Now,
	}
}

// Name returns the job name.
func (j *DailyRankingJob) Name() string {
	return DailyRankingJobName
}

// Description returns a human-readable description.
func (j *DailyRankingJob) Description() string {
	return "Publishes today's fame gain per player and rolls the daily baseline"
}

// Run executes the daily cycle.
// Another process holding the cycle lock is not a failure. An unavailable
// upstream is reported as an error so it shows up in job history.
func (j *DailyRankingJob) Run(ctx context.Context) error {
	result, err := j.runner.Handle(ctx, command.RunDailyCycleCommand{
		Now:     j.now(),
		Trigger: "scheduler",
	})
	if command.IsBusy(err) {
		j.logger.Info("daily cycle is running elsewhere, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("daily ranking: %w", err)
	}

	j.lastResult.Store(result)

	if result.Unavailable {
		return fmt.Errorf("daily ranking: %w", ranking.ErrUpstreamUnavailable)
	}
	return nil
}

// LastResult returns the result of the last completed run, or nil.
func (j *DailyRankingJob) LastResult() *command.DailyCycleResult {
	return j.lastResult.Load()
}
