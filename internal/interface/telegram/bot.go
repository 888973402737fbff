package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/albion-guild-ranking/internal/infrastructure/external/telegram"
	"github.com/alem-hub/albion-guild-ranking/internal/interface/telegram/handler"
	"github.com/alem-hub/albion-guild-ranking/internal/interface/telegram/middleware"
	"github.com/alem-hub/albion-guild-ranking/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// BOT CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// BotConfig contains configuration for the Telegram bot.
type BotConfig struct {
	// Logger for structured logging.
	Logger *slog.Logger

	// AdminIDs may run /publish and bypass the rate limiter.
	AdminIDs []int64

	// RateLimit configures per-user throttling.
	RateLimit middleware.RateLimitConfig

	// MaxConcurrentUpdates limits concurrent update processing.
	MaxConcurrentUpdates int

	// GracefulShutdownTimeout is the timeout for graceful shutdown.
	GracefulShutdownTimeout time.Duration
}

// DefaultBotConfig returns sensible defaults.
func DefaultBotConfig() BotConfig {
	return BotConfig{
		Logger:                  slog.Default(),
		RateLimit:               middleware.DefaultRateLimitConfig(),
		MaxConcurrentUpdates:    20,
		GracefulShutdownTimeout: 30 * time.Second,
	}
}

// APIClient is the part of the Bot API the bot uses.
type APIClient interface {
	GetMe(ctx context.Context) (*telegram.User, error)
	StartPolling(ctx context.Context, handler telegram.UpdateHandler) error
	SendMessage(ctx context.Context, params telegram.SendMessageParams) (*telegram.Message, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text, parseMode string, keyboard *telegram.InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string) error
}

// BotDependencies contains the application handlers the bot talks to.
type BotDependencies struct {
	RankingQuery handler.RankingQuery

	// DailyCycle enables /publish when set.
	DailyCycle handler.DailyCycleRunner

	Presenter *presenter.RankingPresenter
}

// ══════════════════════════════════════════════════════════════════════════════
// BOT
// ══════════════════════════════════════════════════════════════════════════════

// Bot is the Telegram bot controller.
type Bot struct {
	config    BotConfig
	client    APIClient
	router    *Router
	presenter *presenter.RankingPresenter
	logger    *slog.Logger

	rateLimiter *middleware.RateLimiter
	recovery    *middleware.RecoveryMiddleware
	metrics     *middleware.MetricsMiddleware

	running   atomic.Bool
	updateSem chan struct{}
	wg        sync.WaitGroup
}

// NewBot creates a new Telegram bot and registers its commands.
func NewBot(client APIClient, config BotConfig, deps BotDependencies) (*Bot, error) {
	if client == nil {
		return nil, errors.New("telegram client is required")
	}
	if deps.RankingQuery == nil {
		return nil, errors.New("ranking query is required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.MaxConcurrentUpdates <= 0 {
		config.MaxConcurrentUpdates = DefaultBotConfig().MaxConcurrentUpdates
	}
	if config.GracefulShutdownTimeout <= 0 {
		config.GracefulShutdownTimeout = DefaultBotConfig().GracefulShutdownTimeout
	}
	if deps.Presenter == nil {
		deps.Presenter = presenter.NewRankingPresenter(nil)
	}

	logger := config.Logger.With("component", "telegram_bot")

	rateCfg := config.RateLimit
	rateCfg.WhitelistedUsers = append(rateCfg.WhitelistedUsers, config.AdminIDs...)

	recoveryCfg := middleware.DefaultRecoveryConfig()
	recoveryCfg.Logger = config.Logger
	recoveryCfg.UserErrorMessage = deps.Presenter.FormatError()

	metricsCfg := middleware.DefaultMetricsConfig()
	metricsCfg.OnSlowRequest = func(command string, d time.Duration, telegramID int64) {
		logger.Warn("slow command", "command", command, "duration", d, "telegram_id", telegramID)
	}

	rankingHandler := handler.NewRankingHandler(deps.RankingQuery, deps.Presenter, config.Logger)
	helpHandler := handler.NewHelpHandler(deps.Presenter)

	router := NewRouter(config.Logger)
	router.RegisterCommand("ranking", rankingHandler.Cumulative)
	router.RegisterCommand("top", rankingHandler.Cumulative)
	router.RegisterCommand("daily", rankingHandler.Daily)
	router.RegisterCommand("weekly", rankingHandler.Weekly)
	router.RegisterCommand("help", helpHandler.Help)
	router.RegisterCommand("start", helpHandler.Start)
	router.RegisterTextAlias("!ranking", "ranking")
	router.RegisterCallbackPrefix(presenter.RankingCallbackPrefix, rankingHandler.Callback)
	router.SetDefaultCommandHandler(helpHandler.Unknown)

	if deps.DailyCycle != nil {
		publish := handler.NewPublishHandler(deps.DailyCycle, middleware.NewAdminGuard(config.AdminIDs), config.Logger)
		router.RegisterCommand("publish", publish.Handle)
	}

	return &Bot{
		config:      config,
		client:      client,
		router:      router,
		presenter:   deps.Presenter,
		logger:      logger,
		rateLimiter: middleware.NewRateLimiter(rateCfg),
		recovery:    middleware.NewRecoveryMiddleware(recoveryCfg),
		metrics:     middleware.NewMetricsMiddleware(metricsCfg),
		updateSem:   make(chan struct{}, config.MaxConcurrentUpdates),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE MANAGEMENT
// ══════════════════════════════════════════════════════════════════════════════

// Start verifies the token and long-polls until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return errors.New("bot is already running")
	}
	defer b.running.Store(false)

	me, err := b.client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify bot token: %w", err)
	}
	b.logger.Info("bot verified", "id", me.ID, "username", me.Username)

	return b.client.StartPolling(ctx, b.dispatch)
}

// Stop waits for in-flight updates and releases middleware resources.
func (b *Bot) Stop(ctx context.Context) error {
	defer b.rateLimiter.Stop()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("all handlers completed gracefully")
	case <-time.After(b.config.GracefulShutdownTimeout):
		b.logger.Warn("graceful shutdown timeout exceeded")
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// IsRunning returns whether the bot is currently polling.
func (b *Bot) IsRunning() bool {
	return b.running.Load()
}

// Metrics returns a snapshot of command metrics.
func (b *Bot) Metrics() middleware.MetricsSnapshot {
	return b.metrics.Snapshot()
}

// Router returns the router for extra handler registration.
func (b *Bot) Router() *Router {
	return b.router
}

// dispatch hands an update to a worker goroutine so a slow Albion call does
// not block polling.
func (b *Bot) dispatch(ctx context.Context, update *telegram.Update) error {
	select {
	case b.updateSem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() { <-b.updateSem }()
		if err := b.HandleUpdate(ctx, update); err != nil {
			b.logger.Error("failed to handle update", "update_id", update.UpdateID, "error", err)
		}
	}()
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE HANDLING
// ══════════════════════════════════════════════════════════════════════════════

// HandleUpdate processes a single Telegram update synchronously.
func (b *Bot) HandleUpdate(ctx context.Context, update *telegram.Update) error {
	ctx = middleware.ContextWithRequestID(ctx, uuid.NewString())

	switch {
	case update.Message != nil:
		return b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		return b.handleCallbackQuery(ctx, update.CallbackQuery)
	default:
		return nil
	}
}

// handleMessage processes commands and text aliases; other text is ignored.
func (b *Bot) handleMessage(ctx context.Context, msg *telegram.Message) error {
	if msg.From == nil || msg.Chat == nil {
		return nil
	}

	command := telegram.ExtractCommand(msg)
	args := telegram.ExtractCommandArgs(msg)
	if command == "" {
		var ok bool
		if command, args, ok = b.router.ResolveAlias(msg.Text); !ok {
			return nil
		}
	}

	telegramID := msg.From.ID
	chatID := msg.Chat.ID
	ctx = middleware.ContextWithTelegramID(ctx, telegramID)

	if limit := b.rateLimiter.Check(telegramID); !limit.Allowed {
		b.logger.Debug("rate limited", "telegram_id", telegramID, "banned", limit.IsBanned)
		if !limit.Notify {
			return nil
		}
		_, err := b.client.SendMessage(ctx, telegram.SendMessageParams{
			ChatID:    chatID,
			Text:      b.presenter.FormatRateLimited(int(limit.RetryAfter.Seconds() + 0.5)),
			ParseMode: presenter.ParseModeHTML,
		})
		return err
	}

	req := handler.Request{
		TelegramID: telegramID,
		ChatID:     chatID,
		MessageID:  msg.MessageID,
		Command:    command,
		Args:       args,
		FirstName:  msg.From.FirstName,
		Private:    msg.Chat.Type == "private",
	}

	tracker := b.metrics.Start(command, telegramID)
	var resp *handler.Response
	result := b.recovery.RecoverWithHandler(ctx, telegramID, command, func() error {
		var err error
		resp, err = b.router.HandleCommand(ctx, req)
		return err
	})
	tracker.End(resultError(result))

	switch {
	case result.Recovered:
		resp = &handler.Response{Text: result.UserMessage, ParseMode: presenter.ParseModeHTML}
	case result.Err != nil:
		b.logger.Error("command failed", "command", command, "telegram_id", telegramID, "error", result.Err)
		resp = &handler.Response{Text: b.presenter.FormatError(), ParseMode: presenter.ParseModeHTML}
	}
	if resp == nil || resp.Text == "" {
		return nil
	}

	_, err := b.client.SendMessage(ctx, telegram.SendMessageParams{
		ChatID:      chatID,
		Text:        resp.Text,
		ParseMode:   resp.ParseMode,
		ReplyMarkup: convertKeyboard(resp.Keyboard),
	})
	return err
}

// handleCallbackQuery re-renders the board in place.
func (b *Bot) handleCallbackQuery(ctx context.Context, cq *telegram.CallbackQuery) error {
	if cq.From == nil {
		return nil
	}

	telegramID := cq.From.ID
	ctx = middleware.ContextWithTelegramID(ctx, telegramID)

	if limit := b.rateLimiter.Check(telegramID); !limit.Allowed {
		return b.client.AnswerCallbackQuery(ctx, cq.ID, "⏳ Demasiado rápido, espera un momento.")
	}

	req := handler.CallbackRequest{TelegramID: telegramID, Data: cq.Data}
	if cq.Message != nil && cq.Message.Chat != nil {
		req.ChatID = cq.Message.Chat.ID
		req.MessageID = cq.Message.MessageID
	}

	tracker := b.metrics.Start("callback", telegramID)
	var resp *handler.Response
	result := b.recovery.RecoverWithHandler(ctx, telegramID, "callback:"+cq.Data, func() error {
		var err error
		resp, err = b.router.HandleCallback(ctx, req)
		return err
	})
	tracker.End(resultError(result))

	notice := ""
	switch {
	case result.Recovered, result.Err != nil:
		if result.Err != nil {
			b.logger.Error("callback failed", "data", cq.Data, "telegram_id", telegramID, "error", result.Err)
		}
		notice = "⚠️ Algo salió mal"
		resp = nil
	case resp != nil:
		notice = resp.Notice
	}

	var editErr error
	if resp != nil && resp.Text != "" && req.MessageID != 0 {
		editErr = b.client.EditMessageText(ctx, req.ChatID, req.MessageID, resp.Text, resp.ParseMode, convertKeyboard(resp.Keyboard))
	}

	// Always answer, otherwise the button keeps spinning.
	return errors.Join(editErr, b.client.AnswerCallbackQuery(ctx, cq.ID, notice))
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER METHODS
// ══════════════════════════════════════════════════════════════════════════════

func resultError(r *middleware.RecoveryResult) error {
	if r.Recovered {
		return r.PanicInfo.Error
	}
	return r.Err
}

// convertKeyboard converts presenter keyboard to Telegram API format.
func convertKeyboard(kb *presenter.InlineKeyboard) *telegram.InlineKeyboardMarkup {
	if kb == nil || len(kb.Rows) == 0 {
		return nil
	}

	markup := &telegram.InlineKeyboardMarkup{
		InlineKeyboard: make([][]telegram.InlineKeyboardButton, len(kb.Rows)),
	}
	for i, row := range kb.Rows {
		buttons := make([]telegram.InlineKeyboardButton, len(row))
		for j, btn := range row {
			buttons[j] = telegram.InlineKeyboardButton{
				Text:         btn.Text,
				CallbackData: btn.CallbackData,
			}
		}
		markup.InlineKeyboard[i] = buttons
	}
	return markup
}
