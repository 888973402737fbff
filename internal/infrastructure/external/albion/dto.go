package albion

// ══════════════════════════════════════════════════════════════════════════════
// GUILD MEMBERS DTOs
// ══════════════════════════════════════════════════════════════════════════════

// GuildMemberDTO is one element of GET /guilds/{id}/members.
// Only the fields the ranking reads are declared; the rest is ignored.
type GuildMemberDTO struct {
	ID        string  `json:"Id"`
	Name      string  `json:"Name"`
	GuildID   string  `json:"GuildId"`
	GuildName string  `json:"GuildName"`
	KillFame  int64   `json:"KillFame"`
	DeathFame int64   `json:"DeathFame"`
	FameRatio float64 `json:"FameRatio"`

	LifetimeStatistics LifetimeStatisticsDTO `json:"LifetimeStatistics"`
}

// LifetimeStatisticsDTO holds the cumulative fame counters.
type LifetimeStatisticsDTO struct {
	PvE       PvEStatsDTO       `json:"PvE"`
	Gathering GatheringStatsDTO `json:"Gathering"`
	Crafting  FameTotalDTO      `json:"Crafting"`

	CrystalLeague int64  `json:"CrystalLeague"`
	FishingFame   int64  `json:"FishingFame"`
	FarmingFame   int64  `json:"FarmingFame"`
	Timestamp     string `json:"Timestamp"`
}

// PvEStatsDTO splits PvE fame by zone.
type PvEStatsDTO struct {
	Total            int64 `json:"Total"`
	Royal            int64 `json:"Royal"`
	Outlands         int64 `json:"Outlands"`
	Avalon           int64 `json:"Avalon"`
	Hellgate         int64 `json:"Hellgate"`
	CorruptedDungeon int64 `json:"CorruptedDungeon"`
	Mists            int64 `json:"Mists"`
}

// GatheringStatsDTO splits gathering fame by resource; All is the sum.
type GatheringStatsDTO struct {
	Fiber FameTotalDTO `json:"Fiber"`
	Hide  FameTotalDTO `json:"Hide"`
	Ore   FameTotalDTO `json:"Ore"`
	Rock  FameTotalDTO `json:"Rock"`
	Wood  FameTotalDTO `json:"Wood"`
	All   FameTotalDTO `json:"All"`
}

// FameTotalDTO is the common {Total, Royal, Outlands, Avalon} shape.
type FameTotalDTO struct {
	Total    int64 `json:"Total"`
	Royal    int64 `json:"Royal"`
	Outlands int64 `json:"Outlands"`
	Avalon   int64 `json:"Avalon"`
}
