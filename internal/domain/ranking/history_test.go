package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeeklyHistory_RetainsSevenMostRecentByDate(t *testing.T) {
	h := NewWeeklyHistory()

	// Out of chronological order on purpose.
	for _, d := range []Day{
		"2024-05-05", "2024-05-02", "2024-05-07", "2024-05-03",
		"2024-05-08", "2024-05-04", "2024-05-06",
	} {
		h.Append(DailyDelta{Day: d, Players: []StatSnapshot{{Name: "A", PvP: 1}}})
	}
	require.Equal(t, 7, h.Len())

	// 8th date is older than everything but inserted last.
	h.Append(DailyDelta{Day: "2024-05-01", Players: []StatSnapshot{{Name: "A", PvP: 1}}})
	assert.Equal(t, 7, h.Len())
	assert.Equal(t, Day("2024-05-02"), h.Days()[0])

	// A newer 8th date evicts the chronologically oldest.
	h.Append(DailyDelta{Day: "2024-05-09", Players: []StatSnapshot{{Name: "A", PvP: 1}}})
	assert.Equal(t, []Day{
		"2024-05-03", "2024-05-04", "2024-05-05", "2024-05-06",
		"2024-05-07", "2024-05-08", "2024-05-09",
	}, h.Days())
}

func TestWeeklyHistory_SameDateOverwrites(t *testing.T) {
	h := NewWeeklyHistory()
	h.Append(DailyDelta{Day: "2024-05-01", Players: []StatSnapshot{{Name: "A", PvP: 10}}})
	h.Append(DailyDelta{Day: "2024-05-01", Players: []StatSnapshot{{Name: "A", PvP: 3}}})

	require.Equal(t, 1, h.Len())
	players, ok := h.Get("2024-05-01")
	require.True(t, ok)
	assert.Equal(t, int64(3), players[0].PvP)

	entries, _ := RankWeekly(h, CategoryPvP, 10)
	assert.Equal(t, []Entry{{"A", 3}}, entries)
}

func TestNewWeeklyHistory_TrimsOversizedInput(t *testing.T) {
	var days []WeeklyDay
	for _, d := range []Day{"2024-01-10", "2024-01-01", "2024-01-05", "2024-01-03", "2024-01-09",
		"2024-01-02", "2024-01-04", "2024-01-08", "2024-01-07", "2024-01-06"} {
		days = append(days, WeeklyDay{Day: d})
	}

	h := NewWeeklyHistory(days...)
	assert.Equal(t, MaxWeeklyDays, h.Len())
	assert.Equal(t, Day("2024-01-04"), h.Days()[0])
	assert.Equal(t, Day("2024-01-10"), h.Days()[6])
}

func TestDailyBaseline(t *testing.T) {
	b := NewDailyBaseline("2024-05-01", []StatSnapshot{
		{Name: "Bob", PvE: 1},
		{Name: "Alice", PvE: 2},
		{Name: "Bob", PvE: 3},
	})

	assert.Equal(t, 2, b.Len())
	assert.Equal(t, int64(3), b.Get("Bob").PvE)
	assert.Equal(t, StatSnapshot{Name: "Zed"}, b.Get("Zed"))
	assert.True(t, b.Has("Alice"))
	assert.Equal(t, "Alice", b.Snapshots()[0].Name)

	assert.True(t, EmptyBaseline().IsEmpty())
	var nilBaseline *DailyBaseline
	assert.True(t, nilBaseline.IsEmpty())
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{"total", CategoryTotal, false},
		{" PvP ", CategoryPvP, false},
		{"killfame", CategoryPvP, false},
		{"pve", CategoryPvE, false},
		{"gathering", CategoryGathering, false},
		{"craft", CategoryCrafting, false},
		{"fishing", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCategory(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownCategory)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCategories(t *testing.T) {
	got, err := ParseCategories("total, pvp,total,,craft")
	require.NoError(t, err)
	assert.Equal(t, []Category{CategoryTotal, CategoryPvP, CategoryCrafting}, got)

	_, err = ParseCategories("total,fishing")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestDay(t *testing.T) {
	d, err := ParseDay("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, Day("2024-02-29"), d)
	assert.True(t, Day("2023-12-31").Before(d))

	_, err = ParseDay("29/02/2024")
	assert.ErrorIs(t, err, ErrInvalidDay)
}
