// Package presenter formats data for Telegram display.
// Presenters handle the conversion from ranking results to Telegram
// messages and inline keyboards.
package presenter

import (
	"fmt"
	"strings"

	"github.com/alem-hub/albion-guild-ranking/internal/application/query"
	"github.com/alem-hub/albion-guild-ranking/internal/domain/ranking"
)

// ══════════════════════════════════════════════════════════════════════════════
// INLINE KEYBOARD TYPES
// These types represent Telegram inline keyboards in a library-agnostic way.
// The bot converts them to the Bot API format.
// ══════════════════════════════════════════════════════════════════════════════

// InlineKeyboard represents an inline keyboard.
type InlineKeyboard struct {
	Rows [][]InlineButton
}

// InlineButton represents a single inline button.
type InlineButton struct {
	// Text is the button text.
	Text string

	// CallbackData is the callback data (for callback buttons).
	CallbackData string
}

// NewInlineKeyboard creates a new empty inline keyboard.
func NewInlineKeyboard() *InlineKeyboard {
	return &InlineKeyboard{
		Rows: make([][]InlineButton, 0),
	}
}

// AddRow adds a row of buttons.
func (k *InlineKeyboard) AddRow(buttons ...InlineButton) *InlineKeyboard {
	k.Rows = append(k.Rows, buttons)
	return k
}

// CallbackButton creates a callback button.
func CallbackButton(text, callbackData string) InlineButton {
	return InlineButton{
		Text:         text,
		CallbackData: callbackData,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// KEYBOARD BUILDER
// ══════════════════════════════════════════════════════════════════════════════

// RankingCallbackPrefix prefixes callback data of ranking keyboards:
// "rank:<mode>:<category>".
const RankingCallbackPrefix = "rank:"

// KeyboardBuilder builds inline keyboards for the ranking handlers.
type KeyboardBuilder struct{}

// NewKeyboardBuilder creates a new KeyboardBuilder.
func NewKeyboardBuilder() *KeyboardBuilder {
	return &KeyboardBuilder{}
}

// RankingKeyboard creates the category and mode switcher shown under a board.
// The active category and mode are marked with a dot.
func (b *KeyboardBuilder) RankingKeyboard(mode query.Mode, current ranking.Category) *InlineKeyboard {
	kb := NewInlineKeyboard()

	// Категории
	categories := make([]InlineButton, 0, len(ranking.Categories()))
	for _, c := range ranking.Categories() {
		text := CategoryShortLabel(c)
		if c == current {
			text = "• " + text
		}
		categories = append(categories, CallbackButton(text, RankingCallbackData(mode, c)))
	}
	kb.AddRow(categories...)

	// Режимы
	modes := []struct {
		mode  query.Mode
		label string
	}{
		{query.ModeCumulative, "🏆 Total"},
		{query.ModeDaily, "📅 Hoy"},
		{query.ModeWeekly, "🗓 Semana"},
	}
	row := make([]InlineButton, 0, len(modes)+1)
	for _, m := range modes {
		text := m.label
		if m.mode == mode {
			text = "• " + text
		}
		row = append(row, CallbackButton(text, RankingCallbackData(m.mode, current)))
	}
	row = append(row, CallbackButton("🔄", RankingCallbackData(mode, current)))
	kb.AddRow(row...)

	return kb
}

// RankingCallbackData encodes a board request into callback data.
func RankingCallbackData(mode query.Mode, category ranking.Category) string {
	return fmt.Sprintf("%s%s:%s", RankingCallbackPrefix, mode, category)
}

// ParseRankingCallback decodes callback data produced by RankingCallbackData.
func ParseRankingCallback(data string) (query.Mode, ranking.Category, error) {
	rest, ok := strings.CutPrefix(data, RankingCallbackPrefix)
	if !ok {
		return "", 0, fmt.Errorf("not a ranking callback: %q", data)
	}

	modeStr, catStr, ok := strings.Cut(rest, ":")
	if !ok {
		return "", 0, fmt.Errorf("malformed ranking callback: %q", data)
	}

	mode, err := query.ParseMode(modeStr)
	if err != nil {
		return "", 0, err
	}
	category, err := ranking.ParseCategory(catStr)
	if err != nil {
		return "", 0, err
	}
	return mode, category, nil
}
