// Package ranking содержит доменную модель рейтинга гильдии Albion Online:
// снапшоты статистики, дневной baseline, недельную историю и движок ранжирования.
package ranking

import (
	"fmt"
	"sort"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// STAT SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// StatSnapshot — накопленная (lifetime) статистика одного игрока на момент запроса.
// Снапшоты иммутабельны: дельты создаются как новые значения.
type StatSnapshot struct {
	// Name — отображаемое имя игрока, ключ во всех хранилищах.
	Name string `json:"name"`

	// PvP — kill fame.
	PvP int64 `json:"pvp"`

	// PvE — PvE fame.
	PvE int64 `json:"pve"`

	// Gathering — fame за сбор ресурсов.
	Gathering int64 `json:"gathering"`

	// Crafting — fame за крафт.
	Crafting int64 `json:"crafting"`
}

// Total возвращает сумму всех четырёх счётчиков. Никогда не хранится.
func (s StatSnapshot) Total() int64 {
	return s.PvP + s.PvE + s.Gathering + s.Crafting
}

// Value возвращает значение счётчика для категории.
// Для неизвестной категории возвращается 0.
func (s StatSnapshot) Value(c Category) int64 {
	switch c {
	case CategoryTotal:
		return s.Total()
	case CategoryPvP:
		return s.PvP
	case CategoryPvE:
		return s.PvE
	case CategoryGathering:
		return s.Gathering
	case CategoryCrafting:
		return s.Crafting
	default:
		return 0
	}
}

// Sub возвращает новый снапшот: s - base по каждому полю.
func (s StatSnapshot) Sub(base StatSnapshot) StatSnapshot {
	return StatSnapshot{
		Name:      s.Name,
		PvP:       s.PvP - base.PvP,
		PvE:       s.PvE - base.PvE,
		Gathering: s.Gathering - base.Gathering,
		Crafting:  s.Crafting - base.Crafting,
	}
}

// Add возвращает новый снапшот: s + other по каждому полю.
func (s StatSnapshot) Add(other StatSnapshot) StatSnapshot {
	return StatSnapshot{
		Name:      s.Name,
		PvP:       s.PvP + other.PvP,
		PvE:       s.PvE + other.PvE,
		Gathering: s.Gathering + other.Gathering,
		Crafting:  s.Crafting + other.Crafting,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DAY
// ══════════════════════════════════════════════════════════════════════════════

// DayLayout — формат календарной даты (UTC).
const DayLayout = "2006-01-02"

// Day — календарная дата в UTC в формате YYYY-MM-DD.
// Строковое сравнение совпадает с хронологическим.
type Day string

// DayOf возвращает календарную дату момента t в UTC.
func DayOf(t time.Time) Day {
	return Day(t.UTC().Format(DayLayout))
}

// ParseDay разбирает строку YYYY-MM-DD.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDay, s)
	}
	return DayOf(t), nil
}

// String возвращает строковое представление.
func (d Day) String() string {
	return string(d)
}

// Time возвращает полночь этой даты в UTC.
func (d Day) Time() time.Time {
	t, _ := time.Parse(DayLayout, string(d))
	return t
}

// Weekday возвращает день недели.
func (d Day) Weekday() time.Weekday {
	return d.Time().Weekday()
}

// Before сообщает, что d раньше other.
func (d Day) Before(other Day) bool {
	return d < other
}

// IsZero сообщает, что дата не задана.
func (d Day) IsZero() bool {
	return d == ""
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY BASELINE
// ══════════════════════════════════════════════════════════════════════════════

// DailyBaseline — снапшоты, сохранённые в конце предыдущего дневного цикла.
// Живёт ровно один baseline: он перезаписывается, а не версионируется.
type DailyBaseline struct {
	// Day — дата цикла, который записал baseline (пусто при холодном старте).
	Day Day

	players map[string]StatSnapshot
}

// NewDailyBaseline строит baseline из списка снапшотов.
// При совпадении имён побеждает последний.
func NewDailyBaseline(day Day, snapshots []StatSnapshot) *DailyBaseline {
	players := make(map[string]StatSnapshot, len(snapshots))
	for _, s := range snapshots {
		players[s.Name] = s
	}
	return &DailyBaseline{Day: day, players: players}
}

// EmptyBaseline возвращает пустой baseline (первый запуск).
func EmptyBaseline() *DailyBaseline {
	return NewDailyBaseline("", nil)
}

// Get возвращает снапшот игрока; отсутствующий игрок — нулевые счётчики.
func (b *DailyBaseline) Get(name string) StatSnapshot {
	if b == nil {
		return StatSnapshot{Name: name}
	}
	s, ok := b.players[name]
	if !ok {
		return StatSnapshot{Name: name}
	}
	return s
}

// Has сообщает, есть ли игрок в baseline.
func (b *DailyBaseline) Has(name string) bool {
	if b == nil {
		return false
	}
	_, ok := b.players[name]
	return ok
}

// Len возвращает количество игроков.
func (b *DailyBaseline) Len() int {
	if b == nil {
		return 0
	}
	return len(b.players)
}

// IsEmpty возвращает true, если baseline пуст.
func (b *DailyBaseline) IsEmpty() bool {
	return b.Len() == 0
}

// Snapshots возвращает снапшоты, отсортированные по имени.
func (b *DailyBaseline) Snapshots() []StatSnapshot {
	if b == nil {
		return nil
	}
	result := make([]StatSnapshot, 0, len(b.players))
	for _, s := range b.players {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY DELTA
// ══════════════════════════════════════════════════════════════════════════════

// DailyDelta — прирост за день, вычисленный ComputeDailyDelta.
// Только этот тип попадает в недельную историю, поэтому сырые
// накопленные значения туда записать нельзя.
type DailyDelta struct {
	// Day — дата цикла.
	Day Day

	// Players — дельты в порядке получения от провайдера.
	Players []StatSnapshot
}

// Accumulate прибавляет к дельте ранее записанные дельты того же дня.
// Нужен при повторном (принудительном) цикле в тот же день: baseline уже
// сдвинут на сегодня, и новая дельта покрывает только остаток дня.
// Игроки из earlier, которых нет в d, сохраняются в конце списка.
func (d DailyDelta) Accumulate(earlier []StatSnapshot) DailyDelta {
	if len(earlier) == 0 {
		return d
	}

	prev := make(map[string]StatSnapshot, len(earlier))
	for _, s := range earlier {
		prev[s.Name] = s
	}

	players := make([]StatSnapshot, 0, len(d.Players)+len(earlier))
	for _, s := range d.Players {
		if p, ok := prev[s.Name]; ok {
			s = s.Add(p)
			delete(prev, s.Name)
		}
		players = append(players, s)
	}
	for _, s := range earlier {
		if _, left := prev[s.Name]; left {
			players = append(players, s)
		}
	}

	return DailyDelta{Day: d.Day, Players: players}
}
