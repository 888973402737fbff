package handler

import (
	"context"

	"github.com/alem-hub/albion-guild-ranking/internal/interface/telegram/presenter"
)

// HelpHandler handles /help and /start.
type HelpHandler struct {
	presenter *presenter.RankingPresenter
}

// NewHelpHandler creates a new HelpHandler.
func NewHelpHandler(p *presenter.RankingPresenter) *HelpHandler {
	return &HelpHandler{presenter: p}
}

// Help handles /help.
func (h *HelpHandler) Help(_ context.Context, _ Request) (*Response, error) {
	return htmlResponse(h.presenter.FormatHelp()), nil
}

// Start handles /start.
func (h *HelpHandler) Start(_ context.Context, req Request) (*Response, error) {
	return htmlResponse(h.presenter.FormatWelcome(req.FirstName)), nil
}

// Unknown answers an unrecognised command in a private chat. In groups the
// bot stays silent, the command may be meant for another bot.
func (h *HelpHandler) Unknown(_ context.Context, req Request) (*Response, error) {
	if !req.Private {
		return nil, nil
	}
	return htmlResponse("🤔 No conozco ese comando. Usa /help para ver la lista."), nil
}
