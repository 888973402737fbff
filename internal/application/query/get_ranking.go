// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alem-hub/albion-guild-ranking/internal/domain/ranking"
	"github.com/alem-hub/albion-guild-ranking/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET RANKING QUERY
// Строит доску по запросу из чата или HTTP API.
// Три режима: накопленная статистика, прирост за сегодня (превью до
// вечернего цикла) и сумма за неделю. Ничего не записывает.
// ══════════════════════════════════════════════════════════════════════════════

// Mode - режим запроса рейтинга.
type Mode string

const (
	ModeCumulative Mode = "cumulative"
	ModeDaily      Mode = "daily"
	ModeWeekly     Mode = "weekly"
)

// MaxTopN - верхняя граница размера доски для запросов извне.
const MaxTopN = 50

// Причины недоступности, показываются пользователю как есть.
const (
	ReasonUpstream     = "la API de Albion no respondió"
	ReasonCorrupt      = "los datos guardados están dañados"
	ReasonNoHistory    = "todavía no hay historial semanal"
	ReasonEmptyRanking = "no hay jugadores para mostrar"
)

// ParseMode разбирает режим; пустая строка - накопленный рейтинг.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeCumulative, "total", "lifetime":
		return ModeCumulative, nil
	case ModeDaily, "day", "today":
		return ModeDaily, nil
	case ModeWeekly, "week":
		return ModeWeekly, nil
	default:
		return "", fmt.Errorf("unknown ranking mode %q", s)
	}
}

// Style возвращает стиль отображения для режима.
func (m Mode) Style() ranking.Style {
	switch m {
	case ModeDaily:
		return ranking.StyleDaily
	case ModeWeekly:
		return ranking.StyleWeekly
	default:
		return ranking.StyleCumulative
	}
}

// GetRankingQuery содержит параметры запроса рейтинга.
type GetRankingQuery struct {
	// Mode - режим (по умолчанию cumulative).
	Mode Mode

	// Category - имя категории; пустая строка - категория по умолчанию.
	Category string

	// TopN - размер доски (0 = по умолчанию, максимум MaxTopN).
	TopN int
}

// RankingView - результат запроса рейтинга.
type RankingView struct {
	// Entries - строки доски, уже отсортированные.
	Entries []ranking.Entry

	Mode     Mode
	Category ranking.Category
	Style    ranking.Style

	// Unavailable - данных нет; Reason объясняет почему.
	Unavailable bool
	Reason      string

	// GeneratedAt - время построения.
	GeneratedAt time.Time
}

// GetRankingConfig - настройки обработчика.
type GetRankingConfig struct {
	GuildID string
	TopN    int

	// DefaultCategory используется, когда категория не указана.
	DefaultCategory ranking.Category
}

// GetRankingHandler обрабатывает запросы рейтинга.
type GetRankingHandler struct {
	provider ranking.StatsProvider
	store    ranking.SnapshotStore
	gate     *sync.RWMutex
	config   GetRankingConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewGetRankingHandler создаёт обработчик.
// gate - тот же RWMutex, под которым дневной цикл пишет в хранилище.
func NewGetRankingHandler(
	provider ranking.StatsProvider,
	store ranking.SnapshotStore,
	gate *sync.RWMutex,
	config GetRankingConfig,
	logger *slog.Logger,
) *GetRankingHandler {
	if config.TopN <= 0 {
		config.TopN = ranking.DefaultTopN
	}
	if !config.DefaultCategory.IsValid() {
		config.DefaultCategory = ranking.CategoryTotal
	}
	if gate == nil {
		gate = &sync.RWMutex{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &GetRankingHandler{
		provider: provider,
		store:    store,
		gate:     gate,
		config:   config,
		logger:   logger.With("component", "get_ranking"),
		now:      time.Now,
	}
}

// Handle выполняет запрос.
// Неизвестная категория - ошибка валидации (errors.Is ranking.ErrUnknownCategory).
// Недоступность Albion или повреждённое хранилище - не ошибка, а
// RankingView с Unavailable=true.
func (h *GetRankingHandler) Handle(ctx context.Context, q GetRankingQuery) (*RankingView, error) {
	category, topN, err := h.resolve(q)
	if err != nil {
		return nil, shared.WrapError("query", "GetRanking", shared.ErrValidation, err.Error(), err)
	}

	mode := q.Mode
	if mode == "" {
		mode = ModeCumulative
	}

	view := &RankingView{
		Mode:        mode,
		Category:    category,
		Style:       mode.Style(),
		GeneratedAt: h.now().UTC(),
	}

	var (
		entries []ranking.Entry
		ok      bool
	)

	switch mode {
	case ModeCumulative:
		current, err := h.fetch(ctx)
		if err != nil {
			return h.unavailable(view, err)
		}
		entries, ok = ranking.RankCumulative(current, category, topN)

	case ModeDaily:
		current, err := h.fetch(ctx)
		if err != nil {
			return h.unavailable(view, err)
		}
		baseline, err := h.loadDaily(ctx)
		if err != nil {
			return h.unavailable(view, err)
		}
		delta := ranking.ComputeDailyDelta(ranking.DayOf(view.GeneratedAt), current, baseline)
		entries, ok = ranking.RankDaily(delta, category, topN)

	case ModeWeekly:
		history, err := h.loadWeekly(ctx)
		if err != nil {
			return h.unavailable(view, err)
		}
		if history.IsEmpty() {
			view.Unavailable = true
			view.Reason = ReasonNoHistory
			return view, nil
		}
		entries, ok = ranking.RankWeekly(history, category, topN)

	default:
		return nil, shared.WrapError("query", "GetRanking", shared.ErrValidation, "unknown mode", fmt.Errorf("unknown ranking mode %q", mode))
	}

	if !ok {
		view.Unavailable = true
		view.Reason = ReasonEmptyRanking
		return view, nil
	}

	view.Entries = entries
	return view, nil
}

// resolve проверяет категорию и размер доски.
func (h *GetRankingHandler) resolve(q GetRankingQuery) (ranking.Category, int, error) {
	category := h.config.DefaultCategory
	if strings.TrimSpace(q.Category) != "" {
		c, err := ranking.ParseCategory(q.Category)
		if err != nil {
			return 0, 0, err
		}
		category = c
	}

	topN := q.TopN
	switch {
	case topN < 0:
		return 0, 0, fmt.Errorf("%w: top must be positive", shared.ErrValueOutOfRange)
	case topN == 0:
		topN = h.config.TopN
	case topN > MaxTopN:
		topN = MaxTopN
	}

	return category, topN, nil
}

func (h *GetRankingHandler) fetch(ctx context.Context) ([]ranking.StatSnapshot, error) {
	current, err := h.provider.FetchGuildMemberStats(ctx, h.config.GuildID)
	if err != nil {
		return nil, err
	}
	if len(current) == 0 {
		return nil, ranking.ErrUpstreamUnavailable
	}
	return current, nil
}

func (h *GetRankingHandler) loadDaily(ctx context.Context) (*ranking.DailyBaseline, error) {
	h.gate.RLock()
	defer h.gate.RUnlock()
	return h.store.LoadDaily(ctx)
}

func (h *GetRankingHandler) loadWeekly(ctx context.Context) (*ranking.WeeklyHistory, error) {
	h.gate.RLock()
	defer h.gate.RUnlock()
	return h.store.LoadWeekly(ctx)
}

// unavailable превращает ожидаемые сбои в пустую доску с причиной.
// Остальные ошибки возвращаются вызывающему.
func (h *GetRankingHandler) unavailable(view *RankingView, err error) (*RankingView, error) {
	switch {
	case errors.Is(err, ranking.ErrUpstreamUnavailable):
		view.Reason = ReasonUpstream
	case errors.Is(err, ranking.ErrPersistenceCorrupt):
		view.Reason = ReasonCorrupt
	default:
		return nil, fmt.Errorf("get ranking: %w", err)
	}

	h.logger.Warn("ranking unavailable",
		"style", view.Style.String(),
		"category", view.Category.String(),
		"error", err,
	)
	view.Unavailable = true
	return view, nil
}
