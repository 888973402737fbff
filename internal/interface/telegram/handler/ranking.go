package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/alem-hub/albion-guild-ranking/internal/application/query"
	"github.com/alem-hub/albion-guild-ranking/internal/domain/ranking"
	"github.com/alem-hub/albion-guild-ranking/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// RANKING HANDLER
// Handles /ranking, /top, !ranking, /daily and /weekly, plus the category and
// mode buttons under every board.
// ══════════════════════════════════════════════════════════════════════════════

// RankingQuery is the read side used by the handler.
type RankingQuery interface {
	Handle(ctx context.Context, q query.GetRankingQuery) (*query.RankingView, error)
}

// RankingHandler renders guild boards.
type RankingHandler struct {
	query     RankingQuery
	presenter *presenter.RankingPresenter
	logger    *slog.Logger
}

// NewRankingHandler creates a new RankingHandler with dependencies.
func NewRankingHandler(q RankingQuery, p *presenter.RankingPresenter, logger *slog.Logger) *RankingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RankingHandler{
		query:     q,
		presenter: p,
		logger:    logger.With("component", "ranking_handler"),
	}
}

// Cumulative handles /ranking [category].
func (h *RankingHandler) Cumulative(ctx context.Context, req Request) (*Response, error) {
	return h.handle(ctx, query.ModeCumulative, req.Args)
}

// Daily handles /daily [category].
func (h *RankingHandler) Daily(ctx context.Context, req Request) (*Response, error) {
	return h.handle(ctx, query.ModeDaily, req.Args)
}

// Weekly handles /weekly [category].
func (h *RankingHandler) Weekly(ctx context.Context, req Request) (*Response, error) {
	return h.handle(ctx, query.ModeWeekly, req.Args)
}

// Callback handles "rank:<mode>:<category>" buttons.
func (h *RankingHandler) Callback(ctx context.Context, req CallbackRequest) (*Response, error) {
	mode, category, err := presenter.ParseRankingCallback(req.Data)
	if err != nil {
		h.logger.Warn("bad ranking callback", "data", req.Data, "error", err)
		return &Response{Notice: "Botón no válido"}, nil
	}
	return h.handle(ctx, mode, category.String())
}

func (h *RankingHandler) handle(ctx context.Context, mode query.Mode, category string) (*Response, error) {
	view, err := h.query.Handle(ctx, query.GetRankingQuery{Mode: mode, Category: category})
	if err != nil {
		if errors.Is(err, ranking.ErrUnknownCategory) {
			return htmlResponse(h.presenter.FormatUnknownCategory(category)), nil
		}
		return nil, err
	}

	msg := h.presenter.FormatView(view)
	return &Response{
		Text:      msg.Text,
		Keyboard:  msg.Keyboard,
		ParseMode: msg.ParseMode,
	}, nil
}
