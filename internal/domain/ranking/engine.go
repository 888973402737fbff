package ranking

import "sort"

// ══════════════════════════════════════════════════════════════════════════════
// RANKING ENGINE
// ══════════════════════════════════════════════════════════════════════════════
//
// Движок не хранит состояния: все функции чистые. Второе возвращаемое
// значение ok=false означает «данных нет»: вызывающий должен сообщить
// об ошибке, а не публиковать пустую доску.

// DefaultTopN — размер топа по умолчанию.
const DefaultTopN = 10

// Entry — строка рейтинга. Создаётся на каждый запрос и не сохраняется.
type Entry struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// RankCumulative ранжирует накопленные значения.
// Сортировка по убыванию, равные значения сохраняют порядок current.
func RankCumulative(current []StatSnapshot, category Category, topN int) ([]Entry, bool) {
	if len(current) == 0 {
		return nil, false
	}
	return rank(current, category, topN, false), true
}

// ComputeDailyDelta вычитает baseline из текущих снапшотов.
// Игрок, которого нет в baseline, считается имевшим нулевые счётчики.
func ComputeDailyDelta(day Day, current []StatSnapshot, baseline *DailyBaseline) DailyDelta {
	players := make([]StatSnapshot, 0, len(current))
	for _, s := range current {
		players = append(players, s.Sub(baseline.Get(s.Name)))
	}
	return DailyDelta{Day: day, Players: players}
}

// RankDaily ранжирует дневные дельты; отрицательные значения обрезаются до 0.
func RankDaily(delta DailyDelta, category Category, topN int) ([]Entry, bool) {
	if len(delta.Players) == 0 {
		return nil, false
	}
	return rank(delta.Players, category, topN, true), true
}

// RankWeekly суммирует сохранённые дневные дельты за все даты истории.
// Значения не обрезаются. Равные суммы сохраняют порядок первого появления
// игрока при обходе дат по возрастанию.
func RankWeekly(history *WeeklyHistory, category Category, topN int) ([]Entry, bool) {
	if history.IsEmpty() {
		return nil, false
	}

	var order []string
	sums := make(map[string]StatSnapshot)
	for _, day := range history.days {
		for _, s := range day.Players {
			acc, seen := sums[s.Name]
			if !seen {
				order = append(order, s.Name)
				acc = StatSnapshot{Name: s.Name}
			}
			sums[s.Name] = acc.Add(s)
		}
	}
	if len(order) == 0 {
		return nil, false
	}

	totals := make([]StatSnapshot, len(order))
	for i, name := range order {
		totals[i] = sums[name]
	}
	return rank(totals, category, topN, false), true
}

func rank(players []StatSnapshot, category Category, topN int, clamp bool) []Entry {
	if topN <= 0 {
		topN = DefaultTopN
	}

	entries := make([]Entry, len(players))
	for i, s := range players {
		v := s.Value(category)
		if clamp && v < 0 {
			v = 0
		}
		entries[i] = Entry{Name: s.Name, Value: v}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Value > entries[j].Value
	})

	if len(entries) > topN {
		entries = entries[:topN]
	}
	return entries
}
