package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alem-hub/albion-guild-ranking/internal/domain/ranking"
	"github.com/alem-hub/albion-guild-ranking/internal/infrastructure/external/telegram"
)

// MessageSender delivers an HTML message to a chat.
type MessageSender interface {
	SendHTML(ctx context.Context, chatID int64, html string) (*telegram.Message, error)
}

// BoardFormatter renders boards and failure notices.
type BoardFormatter interface {
	FormatBoard(entries []ranking.Entry, category ranking.Category, style ranking.Style) string
	FormatUnavailable(reason string) string
}

// ChatPublisher implements ranking.Publisher over a Telegram channel.
type ChatPublisher struct {
	sender    MessageSender
	formatter BoardFormatter
	channelID int64
	logger    *slog.Logger
}

var _ ranking.Publisher = (*ChatPublisher)(nil)

// NewChatPublisher creates a new ChatPublisher.
func NewChatPublisher(sender MessageSender, formatter BoardFormatter, channelID int64, logger *slog.Logger) *ChatPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatPublisher{
		sender:    sender,
		formatter: formatter,
		channelID: channelID,
		logger:    logger.With("component", "chat_publisher"),
	}
}

// PublishRanking posts a board to the channel.
func (p *ChatPublisher) PublishRanking(ctx context.Context, entries []ranking.Entry, category ranking.Category, style ranking.Style) error {
	text := p.formatter.FormatBoard(entries, category, style)
	if _, err := p.sender.SendHTML(ctx, p.channelID, text); err != nil {
		return fmt.Errorf("publish %s %s ranking: %w", style, category, err)
	}

	p.logger.Info("ranking published",
		"channel_id", p.channelID,
		"category", category.String(),
		"style", style.String(),
		"entries", len(entries),
	)
	return nil
}

// PublishUnavailable posts a failure notice to the channel.
func (p *ChatPublisher) PublishUnavailable(ctx context.Context, reason string) error {
	if _, err := p.sender.SendHTML(ctx, p.channelID, p.formatter.FormatUnavailable(reason)); err != nil {
		return fmt.Errorf("publish unavailable notice: %w", err)
	}

	p.logger.Warn("ranking unavailable notice published",
		"channel_id", p.channelID,
		"reason", reason,
	)
	return nil
}

// LogPublisher implements ranking.Publisher by writing boards to the log.
// Used when no Telegram channel is configured.
type LogPublisher struct {
	formatter BoardFormatter
	logger    *slog.Logger
}

var _ ranking.Publisher = (*LogPublisher)(nil)

// NewLogPublisher creates a new LogPublisher.
func NewLogPublisher(formatter BoardFormatter, logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{
		formatter: formatter,
		logger:    logger.With("component", "log_publisher"),
	}
}

// PublishRanking logs the rendered board.
func (p *LogPublisher) PublishRanking(_ context.Context, entries []ranking.Entry, category ranking.Category, style ranking.Style) error {
	p.logger.Info("ranking",
		"category", category.String(),
		"style", style.String(),
		"board", p.formatter.FormatBoard(entries, category, style),
	)
	return nil
}

// PublishUnavailable logs the failure notice.
func (p *LogPublisher) PublishUnavailable(_ context.Context, reason string) error {
	p.logger.Warn("ranking unavailable", "reason", reason)
	return nil
}
