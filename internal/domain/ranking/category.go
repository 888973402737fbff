package ranking

import (
	"fmt"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATEGORY
// ══════════════════════════════════════════════════════════════════════════════

// Category — закрытое перечисление категорий рейтинга.
type Category int

const (
	CategoryTotal Category = iota
	CategoryPvP
	CategoryPvE
	CategoryGathering
	CategoryCrafting

	categoryCount
)

var categoryNames = [...]string{
	CategoryTotal:     "total",
	CategoryPvP:       "pvp",
	CategoryPvE:       "pve",
	CategoryGathering: "gathering",
	CategoryCrafting:  "crafting",
}

// Алиасы, принимаемые на границе (команды бота, HTTP).
var categoryAliases = map[string]Category{
	"total":     CategoryTotal,
	"all":       CategoryTotal,
	"pvp":       CategoryPvP,
	"kill":      CategoryPvP,
	"killfame":  CategoryPvP,
	"pve":       CategoryPvE,
	"gathering": CategoryGathering,
	"gather":    CategoryGathering,
	"crafting":  CategoryCrafting,
	"craft":     CategoryCrafting,
}

// Categories возвращает все категории в каноническом порядке.
func Categories() []Category {
	result := make([]Category, 0, categoryCount)
	for c := CategoryTotal; c < categoryCount; c++ {
		result = append(result, c)
	}
	return result
}

// ParseCategory разбирает название категории (без учёта регистра).
// Неизвестное название отклоняется с ErrUnknownCategory.
func ParseCategory(s string) (Category, error) {
	c, ok := categoryAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}

// ParseCategories разбирает список через запятую.
func ParseCategories(s string) ([]Category, error) {
	var result []Category
	seen := make(map[Category]bool)
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		c, err := ParseCategory(part)
		if err != nil {
			return nil, err
		}
		if !seen[c] {
			seen[c] = true
			result = append(result, c)
		}
	}
	return result, nil
}

// IsValid сообщает, входит ли значение в перечисление.
func (c Category) IsValid() bool {
	return c >= CategoryTotal && c < categoryCount
}

// String возвращает каноническое имя категории.
func (c Category) String() string {
	if !c.IsValid() {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return categoryNames[c]
}

// CategoryNames возвращает канонические имена всех категорий.
func CategoryNames() []string {
	names := make([]string, 0, categoryCount)
	for _, c := range Categories() {
		names = append(names, c.String())
	}
	return names
}

// ══════════════════════════════════════════════════════════════════════════════
// STYLE
// ══════════════════════════════════════════════════════════════════════════════

// Style — режим агрегации рейтинга; подсказка для Publisher.
type Style int

const (
	StyleCumulative Style = iota
	StyleDaily
	StyleWeekly
)

// String возвращает имя режима.
func (s Style) String() string {
	switch s {
	case StyleCumulative:
		return "cumulative"
	case StyleDaily:
		return "daily"
	case StyleWeekly:
		return "weekly"
	default:
		return "unknown"
	}
}

// ParseStyle разбирает имя режима.
func ParseStyle(s string) (Style, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cumulative", "total", "lifetime":
		return StyleCumulative, nil
	case "daily", "day", "today":
		return StyleDaily, nil
	case "weekly", "week":
		return StyleWeekly, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStyle, s)
	}
}
