// Package main - точка входа бота рейтинга гильдии Albion Online.
//
// Один процесс держит всё: Telegram-бота (команды /ranking, /daily, /weekly),
// планировщик ежедневного цикла (публикация дневного рейтинга и сдвиг базы)
// и HTTP API со health-чеками и админскими эндпоинтами.
//
// Архитектура следует принципам Clean Architecture и DDD:
// - Domain: движок рейтинга без внешних зависимостей
// - Application: дневной цикл (command) и запросы досок (query)
// - Infrastructure: хранилища снимков, клиенты Albion и Telegram, планировщик
// - Interface: Telegram-бот и HTTP API
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alem-hub/albion-guild-ranking/config"
	"github.com/alem-hub/albion-guild-ranking/internal/app"

	// Infrastructure layer
	"github.com/alem-hub/albion-guild-ranking/internal/infrastructure/scheduler"
	"github.com/alem-hub/albion-guild-ranking/internal/infrastructure/scheduler/jobs"

	// Interface layer
	httpserver "github.com/alem-hub/albion-guild-ranking/internal/interface/http"
	"github.com/alem-hub/albion-guild-ranking/internal/interface/http/handlers"
	"github.com/alem-hub/albion-guild-ranking/internal/interface/telegram"
	"github.com/alem-hub/albion-guild-ranking/internal/interface/telegram/middleware"

	// Packages
	"github.com/alem-hub/albion-guild-ranking/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	// Корневой контекст отменяется по SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
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
	log := setupLogger(cfg)
	log.Info("starting guild ranking bot",
		"env", cfg.App.Environment,
		"debug", cfg.App.Debug,
		"guild_id", cfg.Albion.GuildID,
		"store", string(cfg.Store.Kind),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ХРАНИЛИЩЕ, КЛИЕНТЫ, ДНЕВНОЙ ЦИКЛ
	// ─────────────────────────────────────────────────────────────────────────
	application, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}
	defer func() {
		log.Info("closing connections...")
		if err := application.Close(); err != nil {
			log.Warn("close failed", "error", err)
		}
	}()

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

	// ─────────────────────────────────────────────────────────────────────────
	// 5. TELEGRAM BOT
	// ─────────────────────────────────────────────────────────────────────────
	var bot *telegram.Bot
	if application.Telegram != nil {
		botCfg := telegram.DefaultBotConfig()
		botCfg.Logger = log
		botCfg.AdminIDs = cfg.Telegram.AdminIDs
		botCfg.GracefulShutdownTimeout = cfg.App.ShutdownTimeout
		botCfg.RateLimit = middleware.DefaultRateLimitConfig()
		botCfg.RateLimit.RequestsPerMinute = cfg.Telegram.UserRateLimit
		botCfg.RateLimit.BanDuration = cfg.Telegram.UserRateLimitBan

		bot, err = telegram.NewBot(application.Telegram, botCfg, telegram.BotDependencies{
			RankingQuery: application.RankingQuery,
			DailyCycle:   application.DailyCycle,
			Presenter:    application.Presenter,
		})
		if err != nil {
			return fmt.Errorf("failed to create bot: %w", err)
		}
	} else {
		log.Warn("TELEGRAM_BOT_TOKEN not set, chat commands disabled")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	var httpServer *httpserver.Server
	if cfg.HTTP.Enabled {
		health := handlers.NewCompositeHealthChecker(cfg.App.Version)
		health.AddCheck("store", handlers.NewPingCheck(application.Store))
		if application.Cache != nil {
			health.AddSoftCheck("redis", handlers.NewPingCheck(application.Cache))
		}
		health.AddSoftCheck("albion_api", handlers.NewBreakerCheck(func() string {
			return application.Albion.Status().CircuitBreaker
		}))
		if application.Telegram != nil {
			health.AddSoftCheck("telegram_api", handlers.NewBreakerCheck(application.Telegram.BreakerState))
		}

		httpCfg := httpserver.DefaultConfig()
		httpCfg.Host = cfg.HTTP.Host
		httpCfg.Port = cfg.HTTP.Port
		httpCfg.AdminTokenHash = cfg.HTTP.AdminTokenHash
		httpCfg.Version = cfg.App.Version

		httpServer = httpserver.NewServer(httpCfg, httpserver.Dependencies{
			RankingQuery:  application.RankingQuery,
			DailyCycle:    application.DailyCycle,
			Jobs:          sched,
			Stats:         statsFunc(application, sched, bot),
			HealthChecker: health,
			Logger:        log,
		})
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ЗАПУСК СЕРВИСОВ
	// ─────────────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	if cfg.Scheduler.Enabled {
		if err := sched.Start(gctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		log.Info("daily cycle scheduled", "cron", dailyExpr)
	}

	if httpServer != nil {
		g.Go(func() error {
			if err := httpServer.Start(); err != nil {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		})
	}

	if bot != nil {
		g.Go(func() error {
			log.Info("starting Telegram bot", "mode", "polling")
			if err := bot.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("telegram bot error: %w", err)
			}
			return nil
		})
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	g.Go(func() error {
		<-gctx.Done()
		log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()

		var errs []error

		// 1. Бот: дожидаемся обработки текущих апдейтов
		if bot != nil {
			if err := bot.Stop(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("stop bot: %w", err))
			}
		}

		// 2. HTTP сервер
		if httpServer != nil {
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("stop http server: %w", err))
			}
		}

		// 3. Планировщик ждёт текущий дневной цикл
		if sched.IsRunning() {
			if err := sched.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
			}
		}

		return errors.Join(errs...)
	})

	log.Info("guild ranking bot is running",
		"telegram", bot != nil,
		"http", httpServer != nil,
		"scheduler", cfg.Scheduler.Enabled,
	)

	if err := g.Wait(); err != nil {
		log.Error("shutdown completed with errors", "error", err)
		return err
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает структурированное логирование:
// JSON в production, текст в остальных окружениях.
func setupLogger(cfg *config.Config) *slog.Logger {
	return logger.Setup(logger.Options{
		Output: os.Stdout,
		Level:  "info",
		Debug:  cfg.App.Debug,
		Format: logger.ParseFormat(cfg.App.LogFormat, cfg.IsProduction()),
		Attrs: []slog.Attr{
			slog.String("app", cfg.App.Name),
			slog.String("version", cfg.App.Version),
		},
	})
}

// statsFunc собирает runtime-статистику для /api/v1/admin/stats.
func statsFunc(a *app.App, sched *scheduler.Scheduler, bot *telegram.Bot) func() any {
	return func() any {
		stats := map[string]any{
			"albion":    a.Albion.Status(),
			"scheduler": sched.GetMetrics().Snapshot(),
			"features":  a.Config.Features.GetAllFeatures(),
		}
		if bot != nil {
			stats["telegram"] = bot.Metrics()
		}
		return stats
	}
}
