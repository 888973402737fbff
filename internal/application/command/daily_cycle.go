// Package command contains write operations (CQRS - Commands).
// Commands are responsible for changing the state of the system.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/alem-hub/albion-guild-ranking/internal/domain/ranking"
	"github.com/alem-hub/albion-guild-ranking/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RUN DAILY CYCLE COMMAND
// Fetches the guild's lifetime statistics, publishes today's gain against the
// stored baseline, then moves the baseline forward and records the gain in the
// weekly history. Runs about once per day, triggered by the scheduler or an admin.
// ══════════════════════════════════════════════════════════════════════════════

// cycleKey is the single-flight and distributed lock key.
const cycleKey = "daily_cycle"

// RunDailyCycleCommand contains the data needed to run a daily cycle.
type RunDailyCycleCommand struct {
	// Now is the logical time of the run. Zero means time.Now().
	Now time.Time

	// Force bypasses the "already ran today" guard.
	Force bool

	// Trigger describes who started the run (scheduler, admin, cli).
	Trigger string
}

// DailyCycleResult contains the result of a daily cycle.
type DailyCycleResult struct {
	// RunID identifies the run in logs.
	RunID string

	// Day is the UTC date the cycle ran for.
	Day ranking.Day

	// Players is the number of guild members fetched.
	Players int

	// Published lists the categories whose daily board was delivered.
	Published []ranking.Category

	// WeeklyPosted is true when the weekly board was delivered.
	WeeklyPosted bool

	// Skipped is true when the cycle already ran today and Force was not set.
	Skipped bool

	// Unavailable is true when upstream stats could not be fetched.
	Unavailable bool

	// StartedAt is when the run began.
	StartedAt time.Time

	// Duration is how long the run took.
	Duration time.Duration
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// DistributedLocker guards the cycle across processes.
type DistributedLocker interface {
	// AcquireLock returns ok=false when another holder owns the lock.
	AcquireLock(ctx context.Context, resource string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// DailyCycleConfig contains configuration for the handler.
type DailyCycleConfig struct {
	// GuildID is the Albion guild to rank.
	GuildID string

	// TopN is the board size.
	TopN int

	// DailyCategories are published every day, in order.
	DailyCategories []ranking.Category

	// FetchTimeout bounds the upstream fetch.
	FetchTimeout time.Duration

	// CycleTimeout bounds the whole run. The run is detached from the
	// caller's cancellation so the write phase is never cut in half.
	CycleTimeout time.Duration

	// WeeklyPost enables the weekly board on WeeklyWeekday.
	WeeklyPost     bool
	WeeklyWeekday  time.Weekday
	WeeklyCategory ranking.Category

	// LockTTL is the distributed lock lifetime. It is raised to at least
	// CycleTimeout plus lockTTLMargin so the lock outlives any run.
	LockTTL time.Duration
}

// lockTTLMargin covers the lock release after a run hit CycleTimeout.
const lockTTLMargin = time.Minute

// DefaultDailyCycleConfig returns default configuration.
func DefaultDailyCycleConfig() DailyCycleConfig {
	return DailyCycleConfig{
		TopN:            ranking.DefaultTopN,
		DailyCategories: []ranking.Category{ranking.CategoryTotal},
		FetchTimeout:    45 * time.Second,
		CycleTimeout:    5 * time.Minute,
		WeeklyWeekday:   time.Sunday,
		WeeklyCategory:  ranking.CategoryTotal,
		LockTTL:         5*time.Minute + lockTTLMargin,
	}
}

// DailyCycleHandler handles the RunDailyCycleCommand.
type DailyCycleHandler struct {
	provider  ranking.StatsProvider
	store     ranking.SnapshotStore
	publisher ranking.Publisher
	gate      *sync.RWMutex
	locker    DistributedLocker

	config DailyCycleConfig
	group  singleflight.Group
	logger *slog.Logger
	now    func() time.Time
}

// DailyCycleOption customizes the handler.
type DailyCycleOption func(*DailyCycleHandler)

// WithDistributedLock enables the cross-process lock.
func WithDistributedLock(locker DistributedLocker) DailyCycleOption {
	return func(h *DailyCycleHandler) { h.locker = locker }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) DailyCycleOption {
	return func(h *DailyCycleHandler) { h.now = now }
}

// NewDailyCycleHandler creates a new DailyCycleHandler.
// provider must hit upstream directly: the baseline is never taken from a cache.
// gate is shared with readers of the store; nil creates a private one.
func NewDailyCycleHandler(
	provider ranking.StatsProvider,
	store ranking.SnapshotStore,
	publisher ranking.Publisher,
	gate *sync.RWMutex,
	config DailyCycleConfig,
	logger *slog.Logger,
	opts ...DailyCycleOption,
) *DailyCycleHandler {
	defaults := DefaultDailyCycleConfig()
	if config.TopN <= 0 {
		config.TopN = defaults.TopN
	}
	if len(config.DailyCategories) == 0 {
		config.DailyCategories = defaults.DailyCategories
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = defaults.FetchTimeout
	}
	if config.CycleTimeout <= 0 {
		config.CycleTimeout = defaults.CycleTimeout
	}
	if floor := config.CycleTimeout + lockTTLMargin; config.LockTTL < floor {
		config.LockTTL = floor
	}
	if !config.WeeklyCategory.IsValid() {
		config.WeeklyCategory = defaults.WeeklyCategory
	}
	if gate == nil {
		gate = &sync.RWMutex{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	h := &DailyCycleHandler{
		provider:  provider,
		store:     store,
		publisher: publisher,
		gate:      gate,
		config:    config,
		logger:    logger.With("component", "daily_cycle"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle executes the daily cycle. Concurrent callers share one run and
// receive the same result.
func (h *DailyCycleHandler) Handle(ctx context.Context, cmd RunDailyCycleCommand) (*DailyCycleResult, error) {
	ch := h.group.DoChan(cycleKey, func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.config.CycleTimeout)
		defer cancel()
		return h.runLocked(runCtx, cmd)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		result := *res.Val.(*DailyCycleResult)
		return &result, nil
	}
}

// runLocked takes the distributed lock, if configured, around run.
func (h *DailyCycleHandler) runLocked(ctx context.Context, cmd RunDailyCycleCommand) (*DailyCycleResult, error) {
	if h.locker == nil {
		return h.run(ctx, cmd)
	}

	release, ok, err := h.locker.AcquireLock(ctx, cycleKey, h.config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("daily_cycle: acquire lock: %w", err)
	}
	if !ok {
		return nil, shared.ErrCycleInProgress
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			h.logger.Warn("failed to release cycle lock", "error", err)
		}
	}()

	return h.run(ctx, cmd)
}

func (h *DailyCycleHandler) run(ctx context.Context, cmd RunDailyCycleCommand) (*DailyCycleResult, error) {
	now := cmd.Now
	if now.IsZero() {
		now = h.now()
	}

	result := &DailyCycleResult{
		RunID:     uuid.NewString(),
		Day:       ranking.DayOf(now),
		StartedAt: h.now(),
	}
	log := h.logger.With("run_id", result.RunID, "day", result.Day.String(), "trigger", cmd.Trigger)
	defer func() { result.Duration = h.now().Sub(result.StartedAt) }()

	log.Info("daily cycle started", "force", cmd.Force)

	// 1. Fetch. Nothing is written when upstream is down.
	current, err := h.fetch(ctx)
	if err != nil {
		log.Error("guild stats unavailable", "error", err)
		result.Unavailable = true
		h.publishUnavailable(ctx, log, "la API de Albion no respondió")
		return result, nil
	}
	result.Players = len(current)

	// 2. Load state before publishing anything.
	baseline, history, err := h.loadState(ctx)
	if err != nil {
		log.Error("stored snapshot is unreadable, aborting", "error", err)
		h.publishUnavailable(ctx, log, "los datos guardados están dañados")
		return nil, fmt.Errorf("daily_cycle: %w", err)
	}

	// 3. Same-day guard.
	rerun := baseline.Day == result.Day
	if rerun && !cmd.Force {
		log.Info("daily cycle already ran today, skipping")
		result.Skipped = true
		return result, nil
	}

	// 4. Delta. A forced rerun continues from today's baseline, so the
	// gain recorded by the earlier run is added back.
	delta := ranking.ComputeDailyDelta(result.Day, current, baseline)
	if rerun {
		earlier, _ := history.Get(result.Day)
		delta = delta.Accumulate(earlier)
	}

	// 5. Publish the daily boards. Publishing never blocks persistence.
	for _, category := range h.config.DailyCategories {
		entries, ok := ranking.RankDaily(delta, category, h.config.TopN)
		if !ok {
			continue
		}
		if err := h.publisher.PublishRanking(ctx, entries, category, ranking.StyleDaily); err != nil {
			log.Error("failed to publish daily ranking", "category", category.String(), "error", err)
			continue
		}
		result.Published = append(result.Published, category)
	}

	// 6. Persist: the gain first, then the baseline.
	if err := h.persist(ctx, result.Day, current, delta); err != nil {
		log.Error("failed to persist daily cycle", "error", err)
		return nil, fmt.Errorf("daily_cycle: %w", err)
	}

	// 7. Weekly board.
	if h.config.WeeklyPost && result.Day.Weekday() == h.config.WeeklyWeekday {
		history.Append(delta)
		result.WeeklyPosted = h.publishWeekly(ctx, log, history)
	}

	log.Info("daily cycle completed",
		"players", result.Players,
		"published", len(result.Published),
		"weekly_posted", result.WeeklyPosted,
		"rerun", rerun,
	)

	return result, nil
}

// fetch reads fresh stats with FetchTimeout.
func (h *DailyCycleHandler) fetch(ctx context.Context) ([]ranking.StatSnapshot, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, h.config.FetchTimeout)
	defer cancel()

	current, err := h.provider.FetchGuildMemberStats(fetchCtx, h.config.GuildID)
	if err != nil {
		return nil, err
	}
	if len(current) == 0 {
		return nil, ranking.ErrUpstreamUnavailable
	}
	return current, nil
}

// loadState reads the baseline and the weekly history under the read gate.
func (h *DailyCycleHandler) loadState(ctx context.Context) (*ranking.DailyBaseline, *ranking.WeeklyHistory, error) {
	h.gate.RLock()
	defer h.gate.RUnlock()

	baseline, err := h.store.LoadDaily(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load daily baseline: %w", err)
	}
	history, err := h.store.LoadWeekly(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load weekly history: %w", err)
	}
	if baseline == nil {
		baseline = ranking.EmptyBaseline()
	}
	if history == nil {
		history = ranking.NewWeeklyHistory()
	}
	return baseline, history, nil
}

// persist writes today's gain and then the new baseline under the write gate.
// The baseline moves last: until it does, the next run still sees the old one,
// recomputes the whole day and overwrites the weekly entry for that date.
func (h *DailyCycleHandler) persist(ctx context.Context, day ranking.Day, current []ranking.StatSnapshot, delta ranking.DailyDelta) error {
	h.gate.Lock()
	defer h.gate.Unlock()

	if err := h.store.AppendWeekly(ctx, delta); err != nil {
		return fmt.Errorf("append weekly history: %w", err)
	}
	if err := h.store.SaveDaily(ctx, day, current); err != nil {
		return fmt.Errorf("save daily baseline: %w", err)
	}
	return nil
}

func (h *DailyCycleHandler) publishWeekly(ctx context.Context, log *slog.Logger, history *ranking.WeeklyHistory) bool {
	entries, ok := ranking.RankWeekly(history, h.config.WeeklyCategory, h.config.TopN)
	if !ok {
		return false
	}
	if err := h.publisher.PublishRanking(ctx, entries, h.config.WeeklyCategory, ranking.StyleWeekly); err != nil {
		log.Error("failed to publish weekly ranking", "error", err)
		return false
	}
	return true
}

func (h *DailyCycleHandler) publishUnavailable(ctx context.Context, log *slog.Logger, reason string) {
	if err := h.publisher.PublishUnavailable(ctx, reason); err != nil {
		log.Error("failed to publish unavailable notice", "error", err)
	}
}

// IsBusy reports whether err means another process holds the cycle lock.
func IsBusy(err error) bool {
	return errors.Is(err, shared.ErrCycleInProgress)
}
