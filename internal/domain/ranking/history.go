package ranking

import "sort"

// ══════════════════════════════════════════════════════════════════════════════
// WEEKLY HISTORY
// ══════════════════════════════════════════════════════════════════════════════

// MaxWeeklyDays — сколько последних дат хранит недельная история.
const MaxWeeklyDays = 7

// WeeklyDay — дневные дельты всех игроков за одну дату.
type WeeklyDay struct {
	Day     Day            `json:"day"`
	Players []StatSnapshot `json:"players"`
}

// WeeklyHistory — упорядоченная по дате история дневных дельт.
// Инвариант: не больше MaxWeeklyDays различных дат, вытесняется
// самая ранняя по значению даты (не по порядку вставки).
type WeeklyHistory struct {
	days []WeeklyDay
}

// NewWeeklyHistory строит историю из произвольного набора дней.
// Повторяющиеся даты: побеждает последняя. Лишние старые даты отбрасываются.
func NewWeeklyHistory(days ...WeeklyDay) *WeeklyHistory {
	h := &WeeklyHistory{}
	for _, d := range days {
		h.put(d.Day, d.Players)
	}
	h.trim()
	return h
}

// Append вставляет или перезаписывает дельты за дату и обрезает историю.
func (h *WeeklyHistory) Append(delta DailyDelta) {
	h.put(delta.Day, delta.Players)
	h.trim()
}

func (h *WeeklyHistory) put(day Day, players []StatSnapshot) {
	cp := make([]StatSnapshot, len(players))
	copy(cp, players)

	for i := range h.days {
		if h.days[i].Day == day {
			h.days[i].Players = cp
			return
		}
	}
	h.days = append(h.days, WeeklyDay{Day: day, Players: cp})
}

// trim сортирует по дате и оставляет MaxWeeklyDays самых свежих.
func (h *WeeklyHistory) trim() {
	sort.SliceStable(h.days, func(i, j int) bool {
		return h.days[i].Day.Before(h.days[j].Day)
	})
	if len(h.days) > MaxWeeklyDays {
		h.days = h.days[len(h.days)-MaxWeeklyDays:]
	}
}

// Days возвращает даты по возрастанию.
func (h *WeeklyHistory) Days() []Day {
	if h == nil {
		return nil
	}
	result := make([]Day, len(h.days))
	for i, d := range h.days {
		result[i] = d.Day
	}
	return result
}

// Entries возвращает копию записей по возрастанию даты.
func (h *WeeklyHistory) Entries() []WeeklyDay {
	if h == nil {
		return nil
	}
	result := make([]WeeklyDay, len(h.days))
	copy(result, h.days)
	return result
}

// Get возвращает дельты за дату.
func (h *WeeklyHistory) Get(day Day) ([]StatSnapshot, bool) {
	if h == nil {
		return nil, false
	}
	for _, d := range h.days {
		if d.Day == day {
			return d.Players, true
		}
	}
	return nil, false
}

// Len возвращает количество дат.
func (h *WeeklyHistory) Len() int {
	if h == nil {
		return 0
	}
	return len(h.days)
}

// IsEmpty возвращает true, если история пуста.
func (h *WeeklyHistory) IsEmpty() bool {
	return h.Len() == 0
}
