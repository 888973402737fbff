package presenter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alem-hub/albion-guild-ranking/internal/application/query"
	"github.com/alem-hub/albion-guild-ranking/internal/domain/ranking"
)

// ══════════════════════════════════════════════════════════════════════════════
// RANKING PRESENTER
// Форматирует доски гильдии для Telegram. Тексты для игроков - на испанском,
// как в исходном боте гильдии.
// ══════════════════════════════════════════════════════════════════════════════

// ParseModeHTML - режим разметки всех сообщений бота.
const ParseModeHTML = "HTML"

// chartWidth - ширина текстовой диаграммы в символах.
const chartWidth = 10

// RankingPresenter форматирует рейтинг.
type RankingPresenter struct {
	keyboards *KeyboardBuilder

	// showChart включает текстовую диаграмму под каждой строкой.
	showChart func() bool
}

// NewRankingPresenter создаёт презентер. showChart читается на каждом
// сообщении, поэтому флаг можно переключать без перезапуска; nil - без диаграммы.
func NewRankingPresenter(showChart func() bool) *RankingPresenter {
	if showChart == nil {
		showChart = func() bool { return false }
	}
	return &RankingPresenter{
		keyboards: NewKeyboardBuilder(),
		showChart: showChart,
	}
}

// MessageView - готовое сообщение.
type MessageView struct {
	// Text - основной текст сообщения (с HTML-разметкой).
	Text string

	// Keyboard - inline-клавиатура, может быть nil.
	Keyboard *InlineKeyboard

	// ParseMode - режим парсинга.
	ParseMode string
}

// ─────────────────────────────────────────────────────────────────────────────
// BOARD
// ─────────────────────────────────────────────────────────────────────────────

// FormatBoard форматирует доску: заголовок, строки с медалями для первых
// трёх мест и подпись режима.
func (p *RankingPresenter) FormatBoard(entries []ranking.Entry, category ranking.Category, style ranking.Style) string {
	var sb strings.Builder

	sb.WriteString(p.formatHeader(len(entries), category, style))
	sb.WriteString("\n\n")

	if len(entries) == 0 {
		sb.WriteString("📭 <i>No hay jugadores para mostrar</i>")
		return sb.String()
	}

	chart := p.showChart()
	var maxValue int64
	for _, e := range entries {
		maxValue = max(maxValue, e.Value)
	}

	for i, e := range entries {
		sb.WriteString(p.formatEntry(i+1, e, style))
		if chart && maxValue > 0 {
			sb.WriteString("\n    <code>")
			sb.WriteString(formatBar(e.Value, maxValue))
			sb.WriteString("</code>")
		}
		sb.WriteString("\n")
	}

	if footer := styleFooter(style); footer != "" {
		sb.WriteString("\n")
		sb.WriteString(footer)
	}

	return strings.TrimRight(sb.String(), "\n")
}

// FormatView форматирует ответ на команду: доску или сообщение о сбое,
// с клавиатурой переключения категорий.
func (p *RankingPresenter) FormatView(view *query.RankingView) *MessageView {
	keyboard := p.keyboards.RankingKeyboard(view.Mode, view.Category)

	if view.Unavailable {
		return &MessageView{
			Text:      p.FormatUnavailable(view.Reason),
			Keyboard:  keyboard,
			ParseMode: ParseModeHTML,
		}
	}

	text := p.FormatBoard(view.Entries, view.Category, view.Style)
	if !view.GeneratedAt.IsZero() {
		text += fmt.Sprintf("\n\n🕒 <i>%s UTC</i>", view.GeneratedAt.UTC().Format("2006-01-02 15:04"))
	}

	return &MessageView{
		Text:      text,
		Keyboard:  keyboard,
		ParseMode: ParseModeHTML,
	}
}

// formatHeader форматирует заголовок доски.
func (p *RankingPresenter) formatHeader(n int, category ranking.Category, style ranking.Style) string {
	title := "Ranking"
	switch style {
	case ranking.StyleDaily:
		title = "Ranking Diario"
	case ranking.StyleWeekly:
		title = "Ranking Semanal"
	}
	return fmt.Sprintf("🏆 <b>%s Top %d — %s</b>", title, n, CategoryLabel(category))
}

// formatEntry форматирует одну строку доски.
func (p *RankingPresenter) formatEntry(position int, e ranking.Entry, style ranking.Style) string {
	value := FormatNumber(e.Value)
	if style != ranking.StyleCumulative && e.Value > 0 {
		value = "+" + value
	}

	return fmt.Sprintf("%s%d. %s — %s fama", medal(position), position, escapeHTML(e.Name), value)
}

// medal возвращает медаль для первых трёх мест.
func medal(position int) string {
	switch position {
	case 1:
		return "🥇 "
	case 2:
		return "🥈 "
	case 3:
		return "🥉 "
	default:
		return ""
	}
}

func styleFooter(style ranking.Style) string {
	switch style {
	case ranking.StyleDaily:
		return "<i>Fama ganada desde el último corte diario.</i>"
	case ranking.StyleWeekly:
		return "<i>Suma de los últimos 7 días registrados.</i>"
	default:
		return ""
	}
}

// formatBar рисует полосу пропорционально value/maxValue.
// Ненулевое значение всегда получает хотя бы один блок.
func formatBar(value, maxValue int64) string {
	filled := 0
	if value > 0 {
		filled = int(value * chartWidth / maxValue)
		if filled == 0 {
			filled = 1
		}
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", chartWidth-filled)
}

// ─────────────────────────────────────────────────────────────────────────────
// ERROR STATES
// ─────────────────────────────────────────────────────────────────────────────

// FormatUnavailable форматирует сообщение о недоступном рейтинге.
func (p *RankingPresenter) FormatUnavailable(reason string) string {
	text := "😢 <b>No pude obtener el ranking</b>"
	if reason != "" {
		text += "\n\n<i>" + escapeHTML(reason) + "</i>"
	}
	return text
}

// FormatUnknownCategory сообщает о неизвестной категории и перечисляет допустимые.
func (p *RankingPresenter) FormatUnknownCategory(input string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("❓ Categoría desconocida: <code>%s</code>\n\n", escapeHTML(input)))
	sb.WriteString("Categorías válidas:\n")
	for _, c := range ranking.Categories() {
		sb.WriteString(fmt.Sprintf("• <code>%s</code> — %s\n", c, CategoryLabel(c)))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatError форматирует сообщение о внутренней ошибке.
func (p *RankingPresenter) FormatError() string {
	return "⚠️ <b>Algo salió mal</b>\n\nInténtalo de nuevo en unos minutos."
}

// FormatRateLimited форматирует ответ при превышении лимита запросов.
func (p *RankingPresenter) FormatRateLimited(seconds int) string {
	return fmt.Sprintf("⏳ Demasiadas solicitudes. Espera %d segundos e inténtalo de nuevo.", max(seconds, 1))
}

// ─────────────────────────────────────────────────────────────────────────────
// HELP
// ─────────────────────────────────────────────────────────────────────────────

// FormatHelp форматирует справку по командам.
func (p *RankingPresenter) FormatHelp() string {
	return `🏆 <b>Ranking del Gremio</b>

<b>Comandos</b>
• /ranking [categoría] — ranking acumulado (también <code>!ranking</code>)
• /top [categoría] — igual que /ranking
• /daily [categoría] — fama ganada hoy
• /weekly [categoría] — suma de los últimos 7 días
• /help — esta ayuda

<b>Categorías</b>
<code>total</code>, <code>pvp</code>, <code>pve</code>, <code>gathering</code>, <code>crafting</code>

Cada día publico el ranking diario en el canal.`
}

// FormatWelcome форматирует приветствие для /start.
func (p *RankingPresenter) FormatWelcome(firstName string) string {
	greeting := "¡Hola!"
	if firstName != "" {
		greeting = fmt.Sprintf("¡Hola, %s!", escapeHTML(firstName))
	}
	return greeting + " 👋\n\n" + p.FormatHelp()
}

// ─────────────────────────────────────────────────────────────────────────────
// LABELS AND UTILITY FUNCTIONS
// ─────────────────────────────────────────────────────────────────────────────

// CategoryLabel возвращает подпись категории для заголовка.
func CategoryLabel(c ranking.Category) string {
	switch c {
	case ranking.CategoryTotal:
		return "Fama Total"
	case ranking.CategoryPvP:
		return "Kill Fame"
	case ranking.CategoryPvE:
		return "Fama PvE"
	case ranking.CategoryGathering:
		return "Fama de Recolección"
	case ranking.CategoryCrafting:
		return "Fama de Fabricación"
	default:
		return c.String()
	}
}

// CategoryShortLabel возвращает короткую подпись для кнопки.
func CategoryShortLabel(c ranking.Category) string {
	switch c {
	case ranking.CategoryTotal:
		return "Total"
	case ranking.CategoryPvP:
		return "PvP"
	case ranking.CategoryPvE:
		return "PvE"
	case ranking.CategoryGathering:
		return "Recol."
	case ranking.CategoryCrafting:
		return "Fabr."
	default:
		return c.String()
	}
}

// FormatNumber форматирует число с разделителями тысяч: 12345 -> "12,345".
func FormatNumber(n int64) string {
	str := strconv.FormatInt(n, 10)
	sign := ""
	if n < 0 {
		sign, str = "-", str[1:]
	}
	if len(str) <= 3 {
		return sign + str
	}

	var sb strings.Builder
	sb.WriteString(sign)
	lead := len(str) % 3
	if lead > 0 {
		sb.WriteString(str[:lead])
	}
	for i := lead; i < len(str); i += 3 {
		if sb.Len() > len(sign) {
			sb.WriteByte(',')
		}
		sb.WriteString(str[i : i+3])
	}
	return sb.String()
}

// escapeHTML экранирует HTML-символы для безопасного отображения.
func escapeHTML(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	return replacer.Replace(s)
}
