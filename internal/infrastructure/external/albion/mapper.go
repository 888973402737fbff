package albion

import (
	"log/slog"
	"strings"

	"github.com/alem-hub/albion-guild-ranking/internal/domain/ranking"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAPPER - DTO to domain transformations
// ══════════════════════════════════════════════════════════════════════════════

// Mapper converts gameinfo DTOs into ranking snapshots.
// It is the anti-corruption layer between the public API and the domain.
type Mapper struct {
	logger *slog.Logger
}

// NewMapper creates a new Mapper. A nil logger falls back to slog.Default().
func NewMapper(logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mapper{logger: logger}
}

// SnapshotFromDTO maps the four ranked counters of one member.
func (m *Mapper) SnapshotFromDTO(dto GuildMemberDTO) ranking.StatSnapshot {
	return ranking.StatSnapshot{
		Name:      strings.TrimSpace(dto.Name),
		PvP:       dto.KillFame,
		PvE:       dto.LifetimeStatistics.PvE.Total,
		Gathering: dto.LifetimeStatistics.Gathering.All.Total,
		Crafting:  dto.LifetimeStatistics.Crafting.Total,
	}
}

// SnapshotsFromDTOs maps a members list. Players are keyed by name, so a
// blank name is dropped and only the first occurrence of a name is kept.
func (m *Mapper) SnapshotsFromDTOs(guildID string, dtos []GuildMemberDTO) []ranking.StatSnapshot {
	snapshots := make([]ranking.StatSnapshot, 0, len(dtos))
	seen := make(map[string]struct{}, len(dtos))

	for _, dto := range dtos {
		snap := m.SnapshotFromDTO(dto)
		if snap.Name == "" {
			m.logger.Warn("albion member without name skipped",
				"guild_id", guildID,
				"member_id", dto.ID,
			)
			continue
		}
		if _, dup := seen[snap.Name]; dup {
			m.logger.Warn("duplicate member name, keeping first occurrence",
				"guild_id", guildID,
				"name", snap.Name,
				"member_id", dto.ID,
			)
			continue
		}
		seen[snap.Name] = struct{}{}
		snapshots = append(snapshots, snap)
	}

	return snapshots
}
