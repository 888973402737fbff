package ranking

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// PORTS
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotStore — единственный владелец DailyBaseline и WeeklyHistory.
// Реализации находятся в infrastructure слое (file, SQLite, PostgreSQL, Redis).
//
// Отсутствие данных не ошибка: Load* возвращают пустое состояние.
// Повреждённые данные возвращают ErrPersistenceCorrupt.
type SnapshotStore interface {
	// LoadDaily возвращает последний сохранённый baseline.
	LoadDaily(ctx context.Context) (*DailyBaseline, error)

	// SaveDaily целиком перезаписывает baseline.
	SaveDaily(ctx context.Context, day Day, snapshots []StatSnapshot) error

	// LoadWeekly возвращает недельную историю.
	LoadWeekly(ctx context.Context) (*WeeklyHistory, error)

	// AppendWeekly вставляет или перезаписывает дельты за delta.Day
	// и оставляет MaxWeeklyDays самых свежих дат.
	AppendWeekly(ctx context.Context, delta DailyDelta) error
}

// StatsProvider получает текущую накопленную статистику всех членов гильдии.
// Любой сбой (сеть, статус, формат, пустой список) — ErrUpstreamUnavailable;
// частично заполненный список не возвращается.
type StatsProvider interface {
	FetchGuildMemberStats(ctx context.Context, guildID string) ([]StatSnapshot, error)
}

// Publisher отображает рейтинг и доставляет его в канал.
type Publisher interface {
	PublishRanking(ctx context.Context, entries []Entry, category Category, style Style) error
	PublishUnavailable(ctx context.Context, reason string) error
}
