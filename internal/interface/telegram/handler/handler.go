// Package handler contains Telegram command handlers.
// Handlers turn a parsed command into a Response; the router sends it.
package handler

import (
	"github.com/alem-hub/albion-guild-ranking/internal/interface/telegram/presenter"
)

// Request contains a parsed command.
type Request struct {
	// TelegramID is the sender's Telegram ID.
	TelegramID int64

	// ChatID is the chat ID for sending responses.
	ChatID int64

	// MessageID is the original message ID.
	MessageID int64

	// Command is the command name without the leading "/".
	Command string

	// Args is the text after the command.
	Args string

	// FirstName is the sender's first name.
	FirstName string

	// Private is true in a one-to-one chat with the bot.
	Private bool
}

// CallbackRequest contains a pressed inline button.
type CallbackRequest struct {
	TelegramID int64
	ChatID     int64
	MessageID  int64
	Data       string
}

// Response contains the message to send back.
type Response struct {
	// Text is the message text (HTML formatted).
	Text string

	// Keyboard is the inline keyboard to attach.
	Keyboard *presenter.InlineKeyboard

	// ParseMode is the parse mode (HTML).
	ParseMode string

	// Notice is a short toast for callback answers.
	Notice string
}

func htmlResponse(text string) *Response {
	return &Response{Text: text, ParseMode: presenter.ParseModeHTML}
}
