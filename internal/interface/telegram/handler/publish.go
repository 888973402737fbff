package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alem-hub/albion-guild-ranking/internal/application/command"
	"github.com/alem-hub/albion-guild-ranking/internal/application/query"
	"github.com/alem-hub/albion-guild-ranking/internal/interface/telegram/middleware"
	"github.com/alem-hub/albion-guild-ranking/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PUBLISH HANDLER
// Handles /publish: an admin forces the daily cycle right now, e.g. after
// the scheduled run hit an Albion outage.
// ══════════════════════════════════════════════════════════════════════════════

// DailyCycleRunner runs the daily cycle.
type DailyCycleRunner interface {
	Handle(ctx context.Context, cmd command.RunDailyCycleCommand) (*command.DailyCycleResult, error)
}

// PublishHandler handles the /publish command.
type PublishHandler struct {
	runner DailyCycleRunner
	guard  *middleware.AdminGuard
	logger *slog.Logger
	now    func() time.Time
}

// NewPublishHandler creates a new PublishHandler.
func NewPublishHandler(runner DailyCycleRunner, guard *middleware.AdminGuard, logger *slog.Logger) *PublishHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PublishHandler{
		runner: runner,
		guard:  guard,
		logger: logger.With("component", "publish_handler"),
		now:    time.Now,
	}
}

// Handle runs the cycle. "/publish" overwrites today's baseline;
// "/publish safe" keeps the already-ran-today guard.
func (h *PublishHandler) Handle(ctx context.Context, req Request) (*Response, error) {
	if refusal, ok := h.guard.Authorize(req.TelegramID, req.Command); !ok {
		return htmlResponse(refusal), nil
	}

	force := !strings.EqualFold(strings.TrimSpace(req.Args), "safe")

	h.logger.Info("daily cycle requested", "telegram_id", req.TelegramID, "force", force)

	result, err := h.runner.Handle(ctx, command.RunDailyCycleCommand{
		Now:     h.now(),
		Force:   force,
		Trigger: fmt.Sprintf("telegram:%d", req.TelegramID),
	})
	if err != nil {
		if command.IsBusy(err) {
			return htmlResponse("⏳ Ya hay un ciclo diario en curso."), nil
		}
		return nil, err
	}

	return htmlResponse(formatCycleResult(result)), nil
}

func formatCycleResult(r *command.DailyCycleResult) string {
	switch {
	case r.Unavailable:
		return "😢 <b>No pude obtener el ranking</b>\n\n<i>" + query.ReasonUpstream + "</i>"
	case r.Skipped:
		return "ℹ️ El ciclo de hoy ya se ejecutó. Usa /publish para repetirlo."
	}

	categories := make([]string, len(r.Published))
	for i, c := range r.Published {
		categories[i] = c.String()
	}
	published := strings.Join(categories, ", ")
	if published == "" {
		published = "ninguna"
	}

	text := fmt.Sprintf("✅ <b>Ciclo diario %s</b>\n\nJugadores: %d\nPublicado: %s\nDuración: %s",
		r.Day, r.Players, published, timeutil.FormatDuration(r.Duration))
	if r.WeeklyPosted {
		text += fmt.Sprintf("\nRanking semanal del %s publicado.", timeutil.WeekdayNameEs(r.Day.Weekday()))
	}
	return text
}
