// Package timeutil holds the weekday and duration helpers shared by the
// configuration loader and the chat replies.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var weekdaysEs = [...]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}

// WeekdayNameEs returns the Spanish weekday name.
func WeekdayNameEs(d time.Weekday) string {
	return weekdaysEs[d%7]
}

// ParseWeekday accepts 0-6 (Sunday = 0), an English day name or its
// three-letter prefix, or a Spanish day name with or without accents.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 6 {
			return 0, fmt.Errorf("weekday %d out of range 0-6", n)
		}
		return time.Weekday(n), nil
	}

	for d := time.Sunday; d <= time.Saturday; d++ {
		en := strings.ToLower(d.String())
		es := weekdaysEs[d]
		if s == en || s == en[:3] || s == es || s == stripAccents(es) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

func stripAccents(s string) string {
	return strings.NewReplacer("á", "a", "é", "e").Replace(s)
}

// FormatDuration renders d as "3h 05m", "12m", "45s" or "850ms" for chat messages.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	switch {
	case d >= time.Hour:
		return fmt.Sprintf("%dh %02dm", int(d.Hours()), int(d.Minutes())%60)
	case d >= time.Minute:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d >= time.Second:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
}
