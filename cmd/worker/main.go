// Package main - точка входа фонового процесса (Worker) рейтинга гильдии.
//
// Worker запускает только дневной цикл, без Telegram-команд и HTTP API:
// - без флагов: планировщик с ежедневным циклом и прогревом кеша
// - -once: один дневной цикл и выход (для внешнего cron)
// - -once -force: цикл даже если сегодня он уже прошёл
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alem-hub/albion-guild-ranking/config"
	"github.com/alem-hub/albion-guild-ranking/internal/app"
	"github.com/alem-hub/albion-guild-ranking/internal/application/command"
	"github.com/alem-hub/albion-guild-ranking/internal/infrastructure/scheduler"
	"github.com/alem-hub/albion-guild-ranking/internal/infrastructure/scheduler/jobs"
	"github.com/alem-hub/albion-guild-ranking/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

type options struct {
	once  bool
	force bool
}

func main() {
	var opts options
	flag.BoolVar(&opts.once, "once", false, "run one daily cycle and exit")
	flag.BoolVar(&opts.force, "force", false, "with -once: run even if today's cycle already ran")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.Setup(logger.Options{
		Output: os.Stdout,
		Level:  "info",
		Debug:  cfg.App.Debug,
		Format: logger.ParseFormat(cfg.App.LogFormat, cfg.IsProduction()),
		Attrs: []slog.Attr{
			slog.String("app", cfg.App.Name+"-worker"),
			slog.String("version", cfg.App.Version),
		},
	})
	log.Info("starting guild ranking worker",
		"env", cfg.App.Environment,
		"guild_id", cfg.Albion.GuildID,
		"once", opts.once,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ХРАНИЛИЩЕ, КЛИЕНТЫ, ДНЕВНОЙ ЦИКЛ
	// ─────────────────────────────────────────────────────────────────────────
	application, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Warn("close failed", "error", err)
		}
	}()

	if opts.once {
		return runOnce(ctx, application.DailyCycle, opts.force, log)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	schedCfg := scheduler.DefaultSchedulerConfig()
	schedCfg.Logger = log
	schedCfg.Timezone = time.UTC
	sched := scheduler.NewScheduler(schedCfg)

	dailyExpr := scheduler.DailyAt(cfg.Scheduler.DailyCycleHour, cfg.Scheduler.DailyCycleMinute)
	if err := sched.RegisterCron(jobs.NewDailyRankingJob(application.DailyCycle, log), dailyExpr); err != nil {
		return fmt.Errorf("failed to register daily job: %w", err)
	}

	if application.CachedProvider != nil {
		every, err := scheduler.Every(cfg.Albion.CacheWarmInterval)
		if err != nil {
			return fmt.Errorf("invalid ALBION_CACHE_WARM_INTERVAL: %w", err)
		}
		warm := jobs.NewWarmStatsCacheJob(application.CachedProvider, cfg.Albion.GuildID, log)
		if err := sched.Register(warm, every); err != nil {
			return fmt.Errorf("failed to register cache job: %w", err)
		}
	}

	sched.OnJobComplete(func(result scheduler.JobResult) {
		if !result.Success {
			log.Error("job failed", "job", result.JobName, "error", result.Error)
		}
	})

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("guild ranking worker is running", "cron", dailyExpr)

	<-ctx.Done()
	log.Info("received shutdown signal, waiting for running jobs...")

	if err := sched.Stop(); err != nil {
		return fmt.Errorf("stop scheduler: %w", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// runOnce выполняет один дневной цикл; недоступность Albion - ошибка,
// чтобы внешний cron увидел ненулевой код выхода.
func runOnce(ctx context.Context, cycle jobs.DailyCycleRunner, force bool, log *slog.Logger) error {
	result, err := cycle.Handle(ctx, command.RunDailyCycleCommand{
		Now:     time.Now().UTC(),
		Force:   force,
		Trigger: "cli",
	})
	if command.IsBusy(err) {
		log.Info("daily cycle already running elsewhere")
		return nil
	}
	if err != nil {
		return fmt.Errorf("daily cycle: %w", err)
	}

	switch {
	case result.Unavailable:
		return fmt.Errorf("daily cycle %s: albion api unavailable, nothing saved", result.Day)
	case result.Skipped:
		log.Info("daily cycle already ran today, use -force to run again", "day", result.Day.String())
	default:
		published := make([]string, 0, len(result.Published))
		for _, c := range result.Published {
			published = append(published, c.String())
		}
		log.Info("daily cycle completed",
			"day", result.Day.String(),
			"players", result.Players,
			"published", strings.Join(published, ","),
			"weekly", result.WeeklyPosted,
			"duration", result.Duration,
		)
	}
	return nil
}
